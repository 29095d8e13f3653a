package queries

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/egor/portfoliorelay/models"
)

const visitorColumns = `id, session_id, name, email, ip_address, user_agent,
       discordant_user_id, is_active, last_seen, created_at`

// UpsertVisitorBySession создаёт запись посетителя для sessionID или
// домерживает атрибуты в существующую и обновляет last_seen.
// Операция идемпотентна: два одновременных вызова для нового sessionID не
// создадут двух строк — дубликат вставки упирается в уникальный индекс,
// после чего проигравший делает обычный UPDATE.
// Возвращает (посетитель, создан ли только что, ошибка).
func UpsertVisitorBySession(db *sql.DB, sessionID string, attrs models.VisitorAttrs) (*models.WebsiteVisitor, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	now := time.Now()

	insQ := `
		INSERT INTO website_visitors
		    (id, session_id, name, email, ip_address, user_agent, is_active, last_seen, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,true,$7,$7)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING ` + visitorColumns
	row := db.QueryRowContext(ctx, insQ,
		uuid.New(), sessionID, attrs.Name, attrs.Email,
		nullIfEmpty(attrs.IPAddress), nullIfEmpty(attrs.UserAgent), now,
	)
	v, err := scanVisitor(row)
	if err == nil {
		log.Printf("UpsertVisitorBySession: создан посетитель %s для сессии %s", v.ID, sessionID)
		return v, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("ошибка создания посетителя: %w", err)
	}

	// Запись уже есть — домерживаем атрибуты, пустые значения не затирают старые.
	updQ := `
		UPDATE website_visitors SET
		    name       = CASE WHEN $2 <> '' THEN $2 ELSE name END,
		    email      = CASE WHEN $3 <> '' THEN $3 ELSE email END,
		    ip_address = COALESCE($4, ip_address),
		    user_agent = COALESCE($5, user_agent),
		    last_seen  = $6
		WHERE session_id = $1
		RETURNING ` + visitorColumns
	row = db.QueryRowContext(ctx, updQ,
		sessionID, attrs.Name, attrs.Email,
		nullIfEmpty(attrs.IPAddress), nullIfEmpty(attrs.UserAgent), now,
	)
	v, err = scanVisitor(row)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка обновления посетителя: %w", err)
	}
	return v, false, nil
}

// GetVisitorBySession возвращает посетителя по sessionID или nil, если его нет.
func GetVisitorBySession(db *sql.DB, sessionID string) (*models.WebsiteVisitor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	row := db.QueryRowContext(ctx,
		`SELECT `+visitorColumns+` FROM website_visitors WHERE session_id = $1`, sessionID)
	v, err := scanVisitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения посетителя: %w", err)
	}
	return v, nil
}

// SetVisitorExternalID проставляет посетителю его идентификатор в Discordant
// (заполняется пост-фактум после создания зеркальной учётки).
func SetVisitorExternalID(db *sql.DB, id uuid.UUID, externalID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		"UPDATE website_visitors SET discordant_user_id=$1 WHERE id=$2", externalID, id)
	if err != nil {
		return fmt.Errorf("ошибка записи discordant_user_id: %w", err)
	}
	return nil
}

// MarkVisitorInactive снимает флаг активности (вызывается один раз, на call-end).
// Запись не удаляется — пайплайн никогда не удаляет посетителей.
func MarkVisitorInactive(db *sql.DB, sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		"UPDATE website_visitors SET is_active=false, last_seen=$1 WHERE session_id=$2",
		time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("ошибка деактивации посетителя: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitor(row rowScanner) (*models.WebsiteVisitor, error) {
	var (
		v            models.WebsiteVisitor
		ipNull       sql.NullString
		uaNull       sql.NullString
		externalNull sql.NullString
	)
	if err := row.Scan(
		&v.ID, &v.SessionID, &v.Name, &v.Email,
		&ipNull, &uaNull, &externalNull,
		&v.IsActive, &v.LastSeen, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	v.IPAddress = nullStringToPointer(ipNull)
	v.UserAgent = nullStringToPointer(uaNull)
	v.ExternalUserID = nullStringToPointer(externalNull)
	return &v, nil
}
