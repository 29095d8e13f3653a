package models

import (
	"time"

	"github.com/google/uuid"
)

// RelayedMessage представляет собой сообщение, сохранённое локально при
// ретрансляции. После создания запись неизменна: пост-фактум заполняются
// только корреляционные идентификаторы внешних систем.
type RelayedMessage struct {
	ID                  uuid.UUID              `json:"id"`
	VisitorID           uuid.UUID              `json:"visitorId"`
	Content             string                 `json:"content"`
	DiscordantMessageID *string                `json:"discordantMessageId,omitempty"` // nil, если доставка в Discordant не удалась
	WorkflowID          *string                `json:"n8nWorkflowId,omitempty"`
	ExecutionID         *string                `json:"n8nExecutionId,omitempty"`
	IsFromAssistant     bool                   `json:"isFromAssistant"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
}

// VoiceEvent представляет собой сырое событие вебхука голосового провайдера.
// Храним как есть: словарь типов событий у провайдера может расти без
// пересогласования.
type VoiceEvent struct {
	ID        uuid.UUID              `json:"id"`
	EventType string                 `json:"eventType"`
	CallID    string                 `json:"callId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
