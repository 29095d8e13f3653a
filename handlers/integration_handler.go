package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/egor/portfoliorelay/database/queries"
	"github.com/egor/portfoliorelay/models"
)

type integrationRequest struct {
	BaseURL     string `json:"discordantBaseUrl" binding:"required"`
	APIToken    string `json:"apiToken" binding:"required"`
	ServerID    string `json:"serverId"`
	ServerName  string `json:"serverName"`
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	IsActive    bool   `json:"isActive"`
}

// ListIntegrations возвращает все интеграции для админки.
func (a *API) ListIntegrations(c *gin.Context) {
	list, err := a.Store.ListIntegrations()
	if err != nil {
		log.Printf("ListIntegrations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить интеграции"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateIntegration создаёт интеграцию. Активация новой записи атомарно
// деактивирует остальные (см. queries.CreateIntegration).
func (a *API) CreateIntegration(c *gin.Context) {
	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	integ, err := a.Store.CreateIntegration(&models.DiscordantIntegration{
		BaseURL:     req.BaseURL,
		APIToken:    req.APIToken,
		ServerID:    req.ServerID,
		ServerName:  req.ServerName,
		ChannelID:   req.ChannelID,
		ChannelName: req.ChannelName,
		IsActive:    req.IsActive,
	})
	if err != nil {
		log.Printf("CreateIntegration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось создать интеграцию"})
		return
	}
	c.JSON(http.StatusOK, integ)
}

// UpdateIntegration перезаписывает интеграцию по id.
func (a *API) UpdateIntegration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id интеграции"})
		return
	}

	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	integ, err := a.Store.UpdateIntegration(id, &models.DiscordantIntegration{
		BaseURL:     req.BaseURL,
		APIToken:    req.APIToken,
		ServerID:    req.ServerID,
		ServerName:  req.ServerName,
		ChannelID:   req.ChannelID,
		ChannelName: req.ChannelName,
		IsActive:    req.IsActive,
	})
	if err == queries.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "интеграция не найдена"})
		return
	}
	if err != nil {
		log.Printf("UpdateIntegration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось обновить интеграцию"})
		return
	}
	c.JSON(http.StatusOK, integ)
}

// DeleteIntegration удаляет интеграцию по id.
func (a *API) DeleteIntegration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id интеграции"})
		return
	}

	if err := a.Store.DeleteIntegration(id); err != nil {
		if err == queries.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "интеграция не найдена"})
			return
		}
		log.Printf("DeleteIntegration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось удалить интеграцию"})
		return
	}
	c.Status(http.StatusNoContent)
}
