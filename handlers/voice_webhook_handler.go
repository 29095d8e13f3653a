package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/egor/portfoliorelay/discordant"
	"github.com/egor/portfoliorelay/models"
	"github.com/egor/portfoliorelay/websocket"
)

// transcriptForwardThreshold — минимальная длина фрагмента (в рунах), при
// которой он ретранслируется в Discordant. Короткие реплики («ага», «да»)
// пишутся только локально, чтобы не заваливать канал шумом. Политика, не
// требование корректности.
const transcriptForwardThreshold = 10

// Метки ролей в собранном транскрипте.
const (
	roleAssistant = "AI"
	roleCaller    = "Caller"
)

type voiceCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type voiceCall struct {
	ID       string                 `json:"id"`
	Customer *voiceCustomer         `json:"customer,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type voiceTranscript struct {
	Text       string  `json:"text,omitempty"`
	Content    string  `json:"content,omitempty"`
	Role       string  `json:"role,omitempty"` // "assistant" или роль звонившего
	Timestamp  string  `json:"timestamp,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type voiceSummary struct {
	Text        string   `json:"text,omitempty"`
	Content     string   `json:"content,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
}

type voiceWebhookRequest struct {
	Type       string                 `json:"type"`
	Call       voiceCall              `json:"call"`
	Transcript *voiceTranscript       `json:"transcript,omitempty"`
	Summary    *voiceSummary          `json:"summary,omitempty"`
	Raw        map[string]interface{} `json:"-"`
}

// VoiceWebhook принимает события голосового провайдера и ведёт жизненный цикл
// звонка: inactive → connecting (call-start) → active (transcript) → ended
// (call-end). Переходы только по входящим событиям, тайм-аутов нет: звонок
// без call-end остаётся активным навсегда.
// Неизвестные типы событий подтверждаются без побочных эффектов — словарь
// провайдера может расти без пересогласования.
func (a *API) VoiceWebhook(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		log.Printf("VoiceWebhook: ошибка парсинга JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	req := parseVoiceWebhook(raw)
	log.Printf("VoiceWebhook: событие type=%s call=%s", req.Type, req.Call.ID)

	// Журналируем сырое событие независимо от типа.
	if err := a.Store.AddVoiceEvent(req.Type, req.Call.ID, raw); err != nil {
		log.Printf("VoiceWebhook: AddVoiceEvent: %v", err)
	}

	switch req.Type {
	case "call-start":
		a.handleCallStart(c, req)
	case "transcript":
		a.handleTranscript(c, req)
	case "call-end":
		a.handleCallEnd(c, req)
	default:
		log.Printf("VoiceWebhook: необработанный тип события: %s", req.Type)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "событие записано"})
	}
}

// VoiceWebhookVerify отвечает на верификационный GET провайдера:
// пришёл challenge — возвращаем его обратно.
func (a *API) VoiceWebhookVerify(c *gin.Context) {
	if challenge := c.Query("challenge"); challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "вебхук голосового провайдера активен",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleCallStart создаёт/обновляет посетителя по call.id (он же sessionId)
// и best-effort уведомляет Discordant о начале звонка.
func (a *API) handleCallStart(c *gin.Context, req *voiceWebhookRequest) {
	if req.Call.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "в событии отсутствует call.id"})
		return
	}

	attrs := models.VisitorAttrs{}
	if req.Call.Customer != nil {
		attrs.Name = req.Call.Customer.Name
		attrs.Email = req.Call.Customer.Email
	}
	if req.Call.Metadata != nil {
		if ip, ok := req.Call.Metadata["ipAddress"].(string); ok {
			attrs.IPAddress = ip
		}
		if ua, ok := req.Call.Metadata["userAgent"].(string); ok {
			attrs.UserAgent = ua
		}
	}

	visitor, _, err := a.Store.UpsertVisitorBySession(req.Call.ID, attrs)
	if err != nil {
		log.Printf("VoiceWebhook: call-start: UpsertVisitorBySession: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось обработать событие"})
		return
	}

	caller := "Anonymous"
	if visitor.Name != "" {
		caller = visitor.Name
	}
	if err := a.notifyDiscordant(c, fmt.Sprintf(
		"🎙️ **Звонок начался**\n\nCall ID: %s\nЗвонивший: %s\n\nРазговор идёт...",
		req.Call.ID, caller,
	), map[string]interface{}{"callId": req.Call.ID, "eventType": "call-start"}); err != nil {
		// Не фатально: звонок продолжает обрабатываться без уведомления.
		log.Printf("VoiceWebhook: call-start: уведомление Discordant не удалось: %v", err)
	}

	a.broadcast(websocket.NewCallEvent("call-start", req.Call.ID, nil))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "начало звонка обработано", "callId": req.Call.ID})
}

// handleTranscript пишет фрагмент транскрипта локально и ретранслирует его
// в Discordant, только если фрагмент длиннее порога.
func (a *API) handleTranscript(c *gin.Context, req *voiceWebhookRequest) {
	if req.Call.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "в событии отсутствует call.id"})
		return
	}

	visitor, _, err := a.Store.UpsertVisitorBySession(req.Call.ID, models.VisitorAttrs{})
	if err != nil {
		log.Printf("VoiceWebhook: transcript: UpsertVisitorBySession: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось обработать событие"})
		return
	}

	text, role := "", ""
	if req.Transcript != nil {
		text = req.Transcript.Text
		if text == "" {
			text = req.Transcript.Content
		}
		role = req.Transcript.Role
	}
	if text == "" {
		text = "Получен фрагмент голосового транскрипта"
	}
	fromAssistant := role == "assistant"

	meta := map[string]interface{}{
		"callId":         req.Call.ID,
		"transcriptType": role,
	}
	if req.Transcript != nil {
		if req.Transcript.Timestamp != "" {
			meta["timestamp"] = req.Transcript.Timestamp
		}
		if req.Transcript.Confidence > 0 {
			meta["confidence"] = req.Transcript.Confidence
		}
	}

	msg, err := a.Store.AddRelayedMessage(visitor.ID, text, fromAssistant, meta)
	if err != nil {
		log.Printf("VoiceWebhook: transcript: AddRelayedMessage: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось обработать событие"})
		return
	}

	// Короткие фрагменты остаются только в локальной записи.
	if len([]rune(text)) > transcriptForwardThreshold {
		speaker := "👤 Caller"
		if fromAssistant {
			speaker = "🤖 AI"
		}
		if err := a.notifyDiscordant(c, fmt.Sprintf("**%s:** %s", speaker, text),
			map[string]interface{}{"callId": req.Call.ID, "eventType": "transcript"}); err != nil {
			log.Printf("VoiceWebhook: transcript: ретрансляция в Discordant не удалась: %v", err)
		}
	}

	a.broadcast(websocket.NewCallEvent("transcript", req.Call.ID, msg))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "транскрипт обработан"})
}

// handleCallEnd закрывает звонок: деактивирует посетителя, собирает полный
// транскрипт в порядке вставки и отправляет единственную агрегированную
// сводку в Discordant. Дальнейшую автоматизацию запускает принимающая
// сторона — напрямую n8n отсюда не дергается.
func (a *API) handleCallEnd(c *gin.Context, req *voiceWebhookRequest) {
	if req.Call.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "в событии отсутствует call.id"})
		return
	}

	// call-end без call-start не должен падать: upsert создаёт запись
	// с created_at = сейчас, и длительность получается ~0.
	visitor, _, err := a.Store.UpsertVisitorBySession(req.Call.ID, models.VisitorAttrs{})
	if err != nil {
		log.Printf("VoiceWebhook: call-end: UpsertVisitorBySession: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось обработать событие"})
		return
	}

	duration := int(math.Round(time.Since(visitor.CreatedAt).Seconds()))
	if duration < 0 {
		duration = 0
	}

	if err := a.Store.MarkVisitorInactive(req.Call.ID); err != nil {
		log.Printf("VoiceWebhook: call-end: MarkVisitorInactive: %v", err)
	}

	messages, err := a.Store.ListVisitorMessages(visitor.ID)
	if err != nil {
		log.Printf("VoiceWebhook: call-end: ListVisitorMessages: %v", err)
	}
	transcript := RenderTranscript(messages)
	if transcript == "" {
		transcript = "Транскрипт недоступен"
	}

	caller := "Anonymous"
	if req.Call.Customer != nil {
		if req.Call.Customer.Name != "" {
			caller = req.Call.Customer.Name
		} else if req.Call.Customer.Email != "" {
			caller = req.Call.Customer.Email
		}
	} else if visitor.Name != "" {
		caller = visitor.Name
	}

	payload := discordant.TranscriptPayload{
		SessionID:  req.Call.ID,
		Transcript: transcript,
		Duration:   duration,
		CallerID:   caller,
	}
	if req.Summary != nil {
		payload.Summary = req.Summary.Text
		if payload.Summary == "" {
			payload.Summary = req.Summary.Content
		}
		payload.ActionItems = req.Summary.ActionItems
	}

	integ, err := a.Store.GetActiveIntegration()
	if err != nil {
		log.Printf("VoiceWebhook: call-end: GetActiveIntegration: %v", err)
	} else if integ == nil {
		log.Printf("VoiceWebhook: call-end: активная интеграция не настроена, сводка не отправлена")
	} else if err := a.Discordant(integ).SendCallTranscript(c.Request.Context(), payload); err != nil {
		log.Printf("VoiceWebhook: call-end: отправка сводки не удалась: %v", err)
	}

	a.broadcast(websocket.NewCallEvent("call-end", req.Call.ID, nil))

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "завершение звонка обработано",
		"duration":         duration,
		"transcriptLength": len(transcript),
	})
}

// RenderTranscript собирает транскрипт звонка: по строке на фрагмент,
// в порядке создания, с меткой роли.
func RenderTranscript(messages []models.RelayedMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := roleCaller
		if m.IsFromAssistant {
			role = roleAssistant
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// notifyDiscordant шлёт служебное уведомление через активную интеграцию.
func (a *API) notifyDiscordant(c *gin.Context, content string, meta map[string]interface{}) error {
	integ, err := a.Store.GetActiveIntegration()
	if err != nil {
		return err
	}
	if integ == nil {
		return fmt.Errorf("активная интеграция не настроена")
	}
	return a.Discordant(integ).SendSystemNotification(c.Request.Context(), content, meta)
}

// parseVoiceWebhook разбирает уже декодированное тело в типизированную
// структуру. Повторный маршал дешевле ручного обхода map и терпим к
// незнакомым полям.
func parseVoiceWebhook(raw map[string]interface{}) *voiceWebhookRequest {
	var req voiceWebhookRequest
	if b, err := json.Marshal(raw); err == nil {
		_ = json.Unmarshal(b, &req)
	}
	req.Raw = raw
	return &req
}
