package database

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/egor/portfoliorelay/database/queries"
	"github.com/egor/portfoliorelay/models"
)

// Store оборачивает пул соединений и отдаёт обработчикам методы запросов.
// Обработчики зависят от интерфейсов поверх этих методов, что позволяет
// подменять хранилище в тестах.
type Store struct {
	db *sql.DB
}

// NewStore создаёт Store поверх глобального пула (после database.Init).
func NewStore() *Store { return &Store{db: DB} }

func (s *Store) UpsertVisitorBySession(sessionID string, attrs models.VisitorAttrs) (*models.WebsiteVisitor, bool, error) {
	return queries.UpsertVisitorBySession(s.db, sessionID, attrs)
}

func (s *Store) GetVisitorBySession(sessionID string) (*models.WebsiteVisitor, error) {
	return queries.GetVisitorBySession(s.db, sessionID)
}

func (s *Store) SetVisitorExternalID(id uuid.UUID, externalID string) error {
	return queries.SetVisitorExternalID(s.db, id, externalID)
}

func (s *Store) MarkVisitorInactive(sessionID string) error {
	return queries.MarkVisitorInactive(s.db, sessionID)
}

func (s *Store) AddRelayedMessage(visitorID uuid.UUID, content string, fromAssistant bool, meta map[string]interface{}) (*models.RelayedMessage, error) {
	return queries.AddRelayedMessage(s.db, visitorID, content, fromAssistant, meta)
}

func (s *Store) ListVisitorMessages(visitorID uuid.UUID) ([]models.RelayedMessage, error) {
	return queries.ListVisitorMessages(s.db, visitorID)
}

func (s *Store) SetMessageDiscordantID(id uuid.UUID, discordantID string) error {
	return queries.SetMessageDiscordantID(s.db, id, discordantID)
}

func (s *Store) SetMessageWorkflowRun(id uuid.UUID, workflowID, executionID string) error {
	return queries.SetMessageWorkflowRun(s.db, id, workflowID, executionID)
}

func (s *Store) GetActiveIntegration() (*models.DiscordantIntegration, error) {
	return queries.GetActiveIntegration(s.db)
}

func (s *Store) ListIntegrations() ([]models.DiscordantIntegration, error) {
	return queries.ListIntegrations(s.db)
}

func (s *Store) CreateIntegration(integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error) {
	return queries.CreateIntegration(s.db, integ)
}

func (s *Store) UpdateIntegration(id uuid.UUID, integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error) {
	return queries.UpdateIntegration(s.db, id, integ)
}

func (s *Store) DeleteIntegration(id uuid.UUID) error {
	return queries.DeleteIntegration(s.db, id)
}

func (s *Store) AddVoiceEvent(eventType, callID string, payload map[string]interface{}) error {
	return queries.AddVoiceEvent(s.db, eventType, callID, payload)
}

func (s *Store) ListVoiceEvents(limit int) ([]models.VoiceEvent, error) {
	return queries.ListVoiceEvents(s.db, limit)
}

func (s *Store) GetAdmin(email string) (*models.Admin, error) {
	return queries.GetAdmin(s.db, email)
}
