package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// activeClient разворачивает клиента Discordant из активной интеграции.
func (a *API) activeClient(c *gin.Context) (DiscordantAPI, bool) {
	integ, err := a.Store.GetActiveIntegration()
	if err != nil {
		log.Printf("activeClient: GetActiveIntegration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить интеграцию"})
		return nil, false
	}
	if integ == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "активная интеграция Discordant не настроена"})
		return nil, false
	}
	return a.Discordant(integ), true
}

// ListServers проксирует список серверов Discordant в админку.
func (a *API) ListServers(c *gin.Context) {
	client, ok := a.activeClient(c)
	if !ok {
		return
	}

	servers, err := client.ListServers(c.Request.Context())
	if err != nil {
		log.Printf("ListServers: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить серверы"})
		return
	}
	c.JSON(http.StatusOK, servers)
}

// ListChannels проксирует каналы указанного сервера.
func (a *API) ListChannels(c *gin.Context) {
	serverID := c.Query("serverId")
	if serverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serverId обязателен"})
		return
	}

	client, ok := a.activeClient(c)
	if !ok {
		return
	}

	channels, err := client.ListChannels(c.Request.Context(), serverID)
	if err != nil {
		log.Printf("ListChannels: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить каналы"})
		return
	}
	c.JSON(http.StatusOK, channels)
}

type setupRequest struct {
	Action string `json:"action" binding:"required"`
}

// Setup выполняет сервисные действия админки: проверку соединения с
// Discordant и отправку тестового сообщения.
func (a *API) Setup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := a.activeClient(c)
	if !ok {
		return
	}

	switch req.Action {
	case "test-connection":
		err := client.SendSystemNotification(c.Request.Context(),
			"🔧 **Проверка интеграции**\n\nСоединение с Discordant работает.",
			map[string]interface{}{"testType": "connection-test", "timestamp": time.Now().Format(time.RFC3339)})
		if err != nil {
			log.Printf("Setup: проверка соединения не удалась: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "проверка соединения не удалась"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "соединение работает"})

	case "send-test-message":
		err := client.SendSystemNotification(c.Request.Context(),
			fmt.Sprintf("✉️ Тестовое сообщение от интеграции портфолио (%s)", time.Now().Format(time.RFC3339)),
			map[string]interface{}{"testType": "test-message"})
		if err != nil {
			log.Printf("Setup: тестовое сообщение не отправлено: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "тестовое сообщение не отправлено"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "тестовое сообщение отправлено"})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "неизвестное действие"})
	}
}
