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

// AddVoiceEvent записывает сырое событие голосового вебхука.
// Неизвестные типы тоже пишутся — это журнал, а не валидатор.
func AddVoiceEvent(db *sql.DB, eventType, callID string, payload map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	var raw interface{}
	if payload != nil {
		b, _ := json.Marshal(payload)
		raw = b
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO voice_events (id, event_type, call_id, payload, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		uuid.New(), eventType, callID, raw, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка записи голосового события: %w", err)
	}
	return nil
}

// ListVoiceEvents возвращает последние события, свежие сверху.
func ListVoiceEvents(db *sql.DB, limit int) ([]models.VoiceEvent, error) {
	if limit < 1 || limit > MaxEventLimit {
		limit = DefaultEventLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx,
		`SELECT id, event_type, call_id, payload, created_at
		 FROM voice_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения голосовых событий: %w", err)
	}
	defer rows.Close()

	var list []models.VoiceEvent
	for rows.Next() {
		var (
			ev       models.VoiceEvent
			callNull sql.NullString
			rawMeta  []byte
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &callNull, &rawMeta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		ev.CallID = callNull.String
		if len(rawMeta) > 0 {
			_ = json.Unmarshal(rawMeta, &ev.Payload)
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обработки событий: %w", err)
	}
	return list, nil
}
