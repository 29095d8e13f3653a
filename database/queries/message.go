package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/egor/portfoliorelay/models"
)

// AddRelayedMessage сохраняет локальную запись сообщения. Это единственный
// гарантированный эффект ретрансляции: корреляционные идентификаторы внешних
// систем заполняются позже и могут остаться пустыми навсегда.
func AddRelayedMessage(
	db *sql.DB,
	visitorID uuid.UUID,
	content string,
	fromAssistant bool,
	meta map[string]interface{},
) (*models.RelayedMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	now := time.Now()
	msgID := uuid.New()

	var raw interface{}
	if meta != nil {
		b, _ := json.Marshal(meta)
		raw = b
	}

	ins := `
		INSERT INTO relayed_messages
		    (id, visitor_id, content, is_from_assistant, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := db.ExecContext(ctx, ins, msgID, visitorID, content, fromAssistant, raw, now); err != nil {
		return nil, fmt.Errorf("ошибка сохранения сообщения: %w", err)
	}

	return &models.RelayedMessage{
		ID:              msgID,
		VisitorID:       visitorID,
		Content:         content,
		IsFromAssistant: fromAssistant,
		Metadata:        meta,
		CreatedAt:       now,
	}, nil
}

// ListVisitorMessages возвращает сообщения посетителя строго в порядке
// вставки (по seq, не по timestamp) — этот порядок и есть порядок транскрипта.
func ListVisitorMessages(db *sql.DB, visitorID uuid.UUID) ([]models.RelayedMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	const q = `
		SELECT id, content, discordant_message_id, n8n_workflow_id, n8n_execution_id,
		       is_from_assistant, metadata, created_at
		FROM relayed_messages
		WHERE visitor_id = $1
		ORDER BY seq ASC`
	rows, err := db.QueryContext(ctx, q, visitorID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сообщений: %w", err)
	}
	defer rows.Close()

	var list []models.RelayedMessage
	for rows.Next() {
		var (
			m        models.RelayedMessage
			discNull sql.NullString
			wfNull   sql.NullString
			exNull   sql.NullString
			rawMeta  []byte
		)
		if err := rows.Scan(
			&m.ID, &m.Content, &discNull, &wfNull, &exNull,
			&m.IsFromAssistant, &rawMeta, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		m.VisitorID = visitorID
		m.DiscordantMessageID = nullStringToPointer(discNull)
		m.WorkflowID = nullStringToPointer(wfNull)
		m.ExecutionID = nullStringToPointer(exNull)
		if len(rawMeta) > 0 {
			_ = json.Unmarshal(rawMeta, &m.Metadata)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обработки сообщений: %w", err)
	}
	return list, nil
}

// SetMessageDiscordantID заполняет пост-фактум ID сообщения в Discordant.
func SetMessageDiscordantID(db *sql.DB, id uuid.UUID, discordantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		"UPDATE relayed_messages SET discordant_message_id=$1 WHERE id=$2", discordantID, id)
	if err != nil {
		return fmt.Errorf("ошибка записи discordant_message_id: %w", err)
	}
	return nil
}

// SetMessageWorkflowRun заполняет пост-фактум идентификаторы запуска n8n.
func SetMessageWorkflowRun(db *sql.DB, id uuid.UUID, workflowID, executionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		"UPDATE relayed_messages SET n8n_workflow_id=$1, n8n_execution_id=$2 WHERE id=$3",
		workflowID, executionID, id)
	if err != nil {
		return fmt.Errorf("ошибка записи идентификаторов n8n: %w", err)
	}
	return nil
}
