package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/egor/portfoliorelay/discordant"
	"github.com/egor/portfoliorelay/models"
	"github.com/egor/portfoliorelay/websocket"
	"github.com/egor/portfoliorelay/workflow"
)

// defaultVisitorName — имя зеркальной учётки, если посетитель не представился.
const defaultVisitorName = "Website Visitor"

type relayRequest struct {
	Message     string              `json:"message"`
	ServerID    string              `json:"serverId"`
	ChannelID   string              `json:"channelId"`
	SessionID   string              `json:"sessionId"`
	VisitorInfo *models.VisitorInfo `json:"visitorInfo,omitempty"`
}

// RelayMessage ретранслирует сообщение чат-виджета в Discordant.
// Порядок шагов фиксированный, каждый шаг падает независимо:
//  1. активная интеграция (её отсутствие — единственный фатальный отказ);
//  2. upsert посетителя + зеркальная учётка в Discordant (не фатально);
//  3. отправка сообщения в Discordant (не фатально, id останется пустым);
//  4. локальная запись — единственный гарантированный эффект;
//  5. вебхук n8n (не фатально, молча логируется).
//
// Ответ успешен, как только существует локальная запись: UI посетителя
// зависит только от неё.
func (a *API) RelayMessage(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("RelayMessage: ошибка парсинга JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация до любых побочных эффектов.
	if req.Message == "" || req.ServerID == "" || req.ChannelID == "" || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message, serverId, channelId и sessionId обязательны"})
		return
	}

	// Шаг 1: без активной интеграции продолжать некуда.
	integ, err := a.Store.GetActiveIntegration()
	if err != nil {
		log.Printf("RelayMessage: GetActiveIntegration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось отправить сообщение"})
		return
	}
	if integ == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "активная интеграция Discordant не настроена"})
		return
	}
	client := a.Discordant(integ)

	// Шаг 2: запись посетителя. Данные из visitorInfo — только контекст,
	// недостающие ip/user-agent берём из самого запроса.
	attrs := models.VisitorAttrs{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if req.VisitorInfo != nil {
		attrs.Name = req.VisitorInfo.Name
		attrs.Email = req.VisitorInfo.Email
		if req.VisitorInfo.IPAddress != "" {
			attrs.IPAddress = req.VisitorInfo.IPAddress
		}
		if req.VisitorInfo.UserAgent != "" {
			attrs.UserAgent = req.VisitorInfo.UserAgent
		}
	}

	visitor, created, err := a.Store.UpsertVisitorBySession(req.SessionID, attrs)
	if err != nil {
		log.Printf("RelayMessage: UpsertVisitorBySession: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось отправить сообщение"})
		return
	}

	// Для нового посетителя пробуем создать зеркальную учётку в Discordant.
	// Неудача не мешает ретрансляции: сообщение уйдёт от анонимного отправителя.
	if created {
		name := visitor.Name
		if name == "" {
			name = defaultVisitorName
		}
		account, err := client.CreateWebsiteVisitor(c.Request.Context(), discordant.VisitorPayload{
			SessionID: req.SessionID,
			Name:      name,
			Email:     visitor.Email,
			ServerID:  req.ServerID,
		})
		if err != nil {
			log.Printf("RelayMessage: создание учётки в Discordant не удалось: %v", err)
		} else {
			if err := a.Store.SetVisitorExternalID(visitor.ID, account.ID); err != nil {
				log.Printf("RelayMessage: SetVisitorExternalID: %v", err)
			}
			visitor.ExternalUserID = &account.ID
		}
	}

	// Шаг 3: отправка в Discordant.
	receipt, err := client.SendChannelMessage(c.Request.Context(), req.ServerID, req.ChannelID, discordant.ChannelMessage{
		Content: req.Message,
		UserID:  visitor.ExternalUserID,
		Metadata: map[string]interface{}{
			"source":    "website_chat",
			"sessionId": req.SessionID,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		log.Printf("RelayMessage: доставка в Discordant не удалась: %v", err)
		receipt = nil
	}

	// Шаг 4: локальная запись — пишем безусловно, с теми корреляционными
	// идентификаторами, которые удалось получить.
	msg, err := a.Store.AddRelayedMessage(visitor.ID, req.Message, false, map[string]interface{}{
		"serverId":  req.ServerID,
		"channelId": req.ChannelID,
		"source":    "website",
	})
	if err != nil {
		log.Printf("RelayMessage: AddRelayedMessage: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось отправить сообщение"})
		return
	}
	if receipt != nil {
		if err := a.Store.SetMessageDiscordantID(msg.ID, receipt.ID); err != nil {
			log.Printf("RelayMessage: SetMessageDiscordantID: %v", err)
		}
		msg.DiscordantMessageID = &receipt.ID
	}

	// Шаг 5: уведомление n8n — fire-and-forget.
	n8nTriggered := false
	if a.Workflow != nil && a.Workflow.Enabled() {
		ref := workflow.DiscordantRef{ServerID: req.ServerID, ChannelID: req.ChannelID}
		if receipt != nil {
			ref.MessageID = &receipt.ID
		}
		workflowID, executionID, err := a.Workflow.NotifyChatMessage(c.Request.Context(), workflow.ChatPayload{
			Message:   req.Message,
			SessionID: req.SessionID,
			Visitor: workflow.VisitorRef{
				ID:    visitor.ID.String(),
				Name:  visitor.Name,
				Email: visitor.Email,
			},
			Discordant: ref,
		})
		if err != nil {
			log.Printf("RelayMessage: вебхук n8n не сработал: %v", err)
		} else {
			n8nTriggered = true
			if workflowID != "" || executionID != "" {
				if err := a.Store.SetMessageWorkflowRun(msg.ID, workflowID, executionID); err != nil {
					log.Printf("RelayMessage: SetMessageWorkflowRun: %v", err)
				}
				msg.WorkflowID = &workflowID
				msg.ExecutionID = &executionID
			}
		}
	}

	a.broadcast(websocket.NewRelayEvent(visitor, msg))

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           msg,
		"discordantMessage": receipt,
		"n8nTriggered":      n8nTriggered,
	})
}
