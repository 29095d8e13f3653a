package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/egor/portfoliorelay/database/queries"
)

// ListVoiceEvents отдаёт админке последние сырые события голосового вебхука.
func (a *API) ListVoiceEvents(c *gin.Context) {
	limit := queries.DefaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events, err := a.Store.ListVoiceEvents(limit)
	if err != nil {
		log.Printf("ListVoiceEvents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить события"})
		return
	}
	c.JSON(http.StatusOK, events)
}
