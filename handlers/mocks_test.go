package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/egor/portfoliorelay/database/queries"
	"github.com/egor/portfoliorelay/discordant"
	"github.com/egor/portfoliorelay/models"
	"github.com/egor/portfoliorelay/workflow"
)

var errMockDown = errors.New("внешняя система недоступна")

// ───────────────────────────── mockStore

type mockStore struct {
	visitors     map[string]*models.WebsiteVisitor
	messages     []*models.RelayedMessage
	active       *models.DiscordantIntegration
	integrations []models.DiscordantIntegration
	events       []models.VoiceEvent
	admins       map[string]*models.Admin

	upsertCalls     int
	addMessageCalls int

	failUpsert     bool
	failAddMessage bool
}

func newMockStore() *mockStore {
	return &mockStore{
		visitors: map[string]*models.WebsiteVisitor{},
		admins:   map[string]*models.Admin{},
	}
}

func (m *mockStore) UpsertVisitorBySession(sessionID string, attrs models.VisitorAttrs) (*models.WebsiteVisitor, bool, error) {
	m.upsertCalls++
	if m.failUpsert {
		return nil, false, errMockDown
	}
	now := time.Now()
	if v, ok := m.visitors[sessionID]; ok {
		if attrs.Name != "" {
			v.Name = attrs.Name
		}
		if attrs.Email != "" {
			v.Email = attrs.Email
		}
		if attrs.IPAddress != "" {
			ip := attrs.IPAddress
			v.IPAddress = &ip
		}
		if attrs.UserAgent != "" {
			ua := attrs.UserAgent
			v.UserAgent = &ua
		}
		v.LastSeen = now
		return v, false, nil
	}
	v := &models.WebsiteVisitor{
		ID:        uuid.New(),
		SessionID: sessionID,
		Name:      attrs.Name,
		Email:     attrs.Email,
		IsActive:  true,
		LastSeen:  now,
		CreatedAt: now,
	}
	if attrs.IPAddress != "" {
		ip := attrs.IPAddress
		v.IPAddress = &ip
	}
	if attrs.UserAgent != "" {
		ua := attrs.UserAgent
		v.UserAgent = &ua
	}
	m.visitors[sessionID] = v
	return v, true, nil
}

func (m *mockStore) GetVisitorBySession(sessionID string) (*models.WebsiteVisitor, error) {
	return m.visitors[sessionID], nil
}

func (m *mockStore) SetVisitorExternalID(id uuid.UUID, externalID string) error {
	for _, v := range m.visitors {
		if v.ID == id {
			ext := externalID
			v.ExternalUserID = &ext
			return nil
		}
	}
	return queries.ErrNotFound
}

func (m *mockStore) MarkVisitorInactive(sessionID string) error {
	if v, ok := m.visitors[sessionID]; ok {
		v.IsActive = false
		v.LastSeen = time.Now()
	}
	return nil
}

func (m *mockStore) AddRelayedMessage(visitorID uuid.UUID, content string, fromAssistant bool, meta map[string]interface{}) (*models.RelayedMessage, error) {
	m.addMessageCalls++
	if m.failAddMessage {
		return nil, errMockDown
	}
	msg := &models.RelayedMessage{
		ID:              uuid.New(),
		VisitorID:       visitorID,
		Content:         content,
		IsFromAssistant: fromAssistant,
		Metadata:        meta,
		CreatedAt:       time.Now(),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *mockStore) ListVisitorMessages(visitorID uuid.UUID) ([]models.RelayedMessage, error) {
	// Порядок вставки — порядок транскрипта.
	var list []models.RelayedMessage
	for _, msg := range m.messages {
		if msg.VisitorID == visitorID {
			list = append(list, *msg)
		}
	}
	return list, nil
}

func (m *mockStore) SetMessageDiscordantID(id uuid.UUID, discordantID string) error {
	for _, msg := range m.messages {
		if msg.ID == id {
			d := discordantID
			msg.DiscordantMessageID = &d
			return nil
		}
	}
	return queries.ErrNotFound
}

func (m *mockStore) SetMessageWorkflowRun(id uuid.UUID, workflowID, executionID string) error {
	for _, msg := range m.messages {
		if msg.ID == id {
			w, e := workflowID, executionID
			msg.WorkflowID = &w
			msg.ExecutionID = &e
			return nil
		}
	}
	return queries.ErrNotFound
}

func (m *mockStore) GetActiveIntegration() (*models.DiscordantIntegration, error) {
	return m.active, nil
}

func (m *mockStore) ListIntegrations() ([]models.DiscordantIntegration, error) {
	return m.integrations, nil
}

func (m *mockStore) CreateIntegration(integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error) {
	integ.ID = uuid.New()
	if integ.IsActive {
		for i := range m.integrations {
			m.integrations[i].IsActive = false
		}
		cp := *integ
		m.active = &cp
	}
	m.integrations = append(m.integrations, *integ)
	return integ, nil
}

func (m *mockStore) UpdateIntegration(id uuid.UUID, integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error) {
	for i := range m.integrations {
		if m.integrations[i].ID == id {
			if integ.IsActive {
				for j := range m.integrations {
					m.integrations[j].IsActive = false
				}
			}
			integ.ID = id
			m.integrations[i] = *integ
			if integ.IsActive {
				cp := *integ
				m.active = &cp
			}
			return integ, nil
		}
	}
	return nil, queries.ErrNotFound
}

func (m *mockStore) DeleteIntegration(id uuid.UUID) error {
	for i := range m.integrations {
		if m.integrations[i].ID == id {
			m.integrations = append(m.integrations[:i], m.integrations[i+1:]...)
			return nil
		}
	}
	return queries.ErrNotFound
}

func (m *mockStore) AddVoiceEvent(eventType, callID string, payload map[string]interface{}) error {
	m.events = append(m.events, models.VoiceEvent{
		ID:        uuid.New(),
		EventType: eventType,
		CallID:    callID,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockStore) ListVoiceEvents(limit int) ([]models.VoiceEvent, error) {
	if limit > 0 && len(m.events) > limit {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockStore) GetAdmin(email string) (*models.Admin, error) {
	return m.admins[email], nil
}

// ───────────────────────────── mockDiscordant

type mockDiscordant struct {
	failCreateVisitor bool
	failSend          bool

	createVisitorCalls int
	sendCalls          int
	transcriptCalls    int

	lastMessage    discordant.ChannelMessage
	lastTranscript discordant.TranscriptPayload
}

func (m *mockDiscordant) CreateWebsiteVisitor(_ context.Context, p discordant.VisitorPayload) (*discordant.VisitorAccount, error) {
	m.createVisitorCalls++
	if m.failCreateVisitor {
		return nil, errMockDown
	}
	return &discordant.VisitorAccount{ID: "disc-user-" + p.SessionID, Name: p.Name}, nil
}

func (m *mockDiscordant) SendChannelMessage(_ context.Context, serverID, channelID string, msg discordant.ChannelMessage) (*discordant.MessageReceipt, error) {
	m.sendCalls++
	if m.failSend {
		return nil, errMockDown
	}
	m.lastMessage = msg
	return &discordant.MessageReceipt{ID: "disc-msg-1", ChannelID: channelID}, nil
}

func (m *mockDiscordant) SendSystemNotification(ctx context.Context, content string, meta map[string]interface{}) error {
	_, err := m.SendChannelMessage(ctx, "srv", "chan", discordant.ChannelMessage{Content: content, Metadata: meta})
	return err
}

func (m *mockDiscordant) SendCallTranscript(_ context.Context, p discordant.TranscriptPayload) error {
	m.transcriptCalls++
	if m.failSend {
		return errMockDown
	}
	m.lastTranscript = p
	return nil
}

func (m *mockDiscordant) ListServers(context.Context) ([]discordant.Server, error) {
	if m.failSend {
		return nil, errMockDown
	}
	return []discordant.Server{{ID: "srv-1", Name: "Portfolio"}}, nil
}

func (m *mockDiscordant) ListChannels(_ context.Context, serverID string) ([]discordant.Channel, error) {
	if m.failSend {
		return nil, errMockDown
	}
	return []discordant.Channel{{ID: "chan-1", Name: "website-chat"}}, nil
}

// ───────────────────────────── mockNotifier

type mockNotifier struct {
	enabled bool
	fail    bool
	calls   int
	last    workflow.ChatPayload
}

func (m *mockNotifier) Enabled() bool { return m.enabled }

func (m *mockNotifier) NotifyChatMessage(_ context.Context, p workflow.ChatPayload) (string, string, error) {
	m.calls++
	if m.fail {
		return "", "", errMockDown
	}
	m.last = p
	return "wf-1", "exec-1", nil
}

// ───────────────────────────── сборка тестового API

type testEnv struct {
	api        *API
	store      *mockStore
	discordant *mockDiscordant
	notifier   *mockNotifier
	router     *gin.Engine
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	store := newMockStore()
	disc := &mockDiscordant{}
	notifier := &mockNotifier{enabled: true}

	api := &API{
		Store: store,
		Discordant: func(*models.DiscordantIntegration) DiscordantAPI {
			return disc
		},
		Workflow: notifier,
	}

	r := gin.New()
	r.POST("/api/auth/login", api.Login)
	r.POST("/api/relay/message", api.RelayMessage)
	r.POST("/api/voice/webhook", api.VoiceWebhook)
	r.GET("/api/voice/webhook", api.VoiceWebhookVerify)
	r.GET("/api/integrations", api.ListIntegrations)
	r.POST("/api/integrations", api.CreateIntegration)
	r.PUT("/api/integrations/:id", api.UpdateIntegration)
	r.DELETE("/api/integrations/:id", api.DeleteIntegration)
	r.GET("/api/discordant/servers", api.ListServers)
	r.GET("/api/discordant/channels", api.ListChannels)
	r.POST("/api/discordant/setup", api.Setup)
	r.GET("/api/voice/events", api.ListVoiceEvents)

	return &testEnv{api: api, store: store, discordant: disc, notifier: notifier, router: r}
}

// withIntegration включает активную интеграцию с дефолтным каналом.
func (e *testEnv) withIntegration() *testEnv {
	e.store.active = &models.DiscordantIntegration{
		ID:        uuid.New(),
		BaseURL:   "https://discordant.example",
		APIToken:  "token",
		ServerID:  "srv-1",
		ChannelID: "chan-1",
		IsActive:  true,
	}
	return e
}
