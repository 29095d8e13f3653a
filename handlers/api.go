package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/egor/portfoliorelay/discordant"
	"github.com/egor/portfoliorelay/models"
	"github.com/egor/portfoliorelay/workflow"
)

// Store — всё, что обработчикам нужно от хранилища.
// Реализуется database.Store, в тестах подменяется моком.
type Store interface {
	UpsertVisitorBySession(sessionID string, attrs models.VisitorAttrs) (*models.WebsiteVisitor, bool, error)
	GetVisitorBySession(sessionID string) (*models.WebsiteVisitor, error)
	SetVisitorExternalID(id uuid.UUID, externalID string) error
	MarkVisitorInactive(sessionID string) error

	AddRelayedMessage(visitorID uuid.UUID, content string, fromAssistant bool, meta map[string]interface{}) (*models.RelayedMessage, error)
	ListVisitorMessages(visitorID uuid.UUID) ([]models.RelayedMessage, error)
	SetMessageDiscordantID(id uuid.UUID, discordantID string) error
	SetMessageWorkflowRun(id uuid.UUID, workflowID, executionID string) error

	GetActiveIntegration() (*models.DiscordantIntegration, error)
	ListIntegrations() ([]models.DiscordantIntegration, error)
	CreateIntegration(integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error)
	UpdateIntegration(id uuid.UUID, integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error)
	DeleteIntegration(id uuid.UUID) error

	AddVoiceEvent(eventType, callID string, payload map[string]interface{}) error
	ListVoiceEvents(limit int) ([]models.VoiceEvent, error)

	GetAdmin(email string) (*models.Admin, error)
}

// DiscordantAPI — исходящие вызовы к чат-бэкенду.
type DiscordantAPI interface {
	CreateWebsiteVisitor(ctx context.Context, p discordant.VisitorPayload) (*discordant.VisitorAccount, error)
	SendChannelMessage(ctx context.Context, serverID, channelID string, msg discordant.ChannelMessage) (*discordant.MessageReceipt, error)
	SendSystemNotification(ctx context.Context, content string, meta map[string]interface{}) error
	SendCallTranscript(ctx context.Context, p discordant.TranscriptPayload) error
	ListServers(ctx context.Context) ([]discordant.Server, error)
	ListChannels(ctx context.Context, serverID string) ([]discordant.Channel, error)
}

// Notifier — best-effort уведомление n8n.
type Notifier interface {
	Enabled() bool
	NotifyChatMessage(ctx context.Context, p workflow.ChatPayload) (workflowID, executionID string, err error)
}

// Broadcaster — рассылка событий пайплайна подключённым админкам.
type Broadcaster interface {
	BroadcastMessage(data []byte)
}

// API держит зависимости всех HTTP-обработчиков.
// Клиент Discordant создаётся на каждый запрос из активной интеграции,
// поэтому здесь лежит фабрика, а не готовый клиент.
type API struct {
	Store      Store
	Discordant func(integ *models.DiscordantIntegration) DiscordantAPI
	Workflow   Notifier
	Hub        Broadcaster
}

// NewAPI собирает API с боевыми реализациями.
func NewAPI(store Store, notifier Notifier, hub Broadcaster) *API {
	return &API{
		Store: store,
		Discordant: func(integ *models.DiscordantIntegration) DiscordantAPI {
			return discordant.NewClient(integ)
		},
		Workflow: notifier,
		Hub:      hub,
	}
}

func (a *API) broadcast(data []byte, err error) {
	if err != nil || a.Hub == nil {
		return
	}
	a.Hub.BroadcastMessage(data)
}
