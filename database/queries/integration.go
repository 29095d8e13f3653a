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

const integrationColumns = `id, base_url, api_token, server_id, server_name,
       channel_id, channel_name, is_active, created_at, updated_at`

// GetActiveIntegration возвращает единственную активную интеграцию
// или nil, если ни одна не активна.
func GetActiveIntegration(db *sql.DB) (*models.DiscordantIntegration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	row := db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM discordant_integrations WHERE is_active = true LIMIT 1`)
	integ, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активной интеграции: %w", err)
	}
	return integ, nil
}

// ListIntegrations возвращает все интеграции, свежие сверху.
func ListIntegrations(db *sql.DB) ([]models.DiscordantIntegration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM discordant_integrations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения интеграций: %w", err)
	}
	defer rows.Close()

	var list []models.DiscordantIntegration
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования интеграции: %w", err)
		}
		list = append(list, *integ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обработки интеграций: %w", err)
	}
	return list, nil
}

// CreateIntegration создаёт интеграцию. Если она создаётся активной,
// деактивация остальных и вставка идут в одной транзакции — инвариант
// «не более одной активной» держится и при одновременных правках админов.
func CreateIntegration(db *sql.DB, integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if integ.IsActive {
		if _, err := tx.ExecContext(ctx,
			"UPDATE discordant_integrations SET is_active=false WHERE is_active=true"); err != nil {
			return nil, fmt.Errorf("ошибка деактивации интеграций: %w", err)
		}
	}

	now := time.Now()
	integ.ID = uuid.New()
	integ.CreatedAt = now
	integ.UpdatedAt = now

	ins := `
		INSERT INTO discordant_integrations
		    (id, base_url, api_token, server_id, server_name, channel_id, channel_name, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`
	if _, err := tx.ExecContext(ctx, ins,
		integ.ID, integ.BaseURL, integ.APIToken,
		integ.ServerID, integ.ServerName, integ.ChannelID, integ.ChannelName,
		integ.IsActive, now,
	); err != nil {
		return nil, fmt.Errorf("ошибка создания интеграции: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	log.Printf("CreateIntegration: создана интеграция %s (active=%v)", integ.ID, integ.IsActive)
	return integ, nil
}

// UpdateIntegration перезаписывает интеграцию. Активация записи деактивирует
// остальные в той же транзакции.
func UpdateIntegration(db *sql.DB, id uuid.UUID, integ *models.DiscordantIntegration) (*models.DiscordantIntegration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if integ.IsActive {
		if _, err := tx.ExecContext(ctx,
			"UPDATE discordant_integrations SET is_active=false WHERE is_active=true AND id <> $1", id); err != nil {
			return nil, fmt.Errorf("ошибка деактивации интеграций: %w", err)
		}
	}

	now := time.Now()
	upd := `
		UPDATE discordant_integrations SET
		    base_url=$2, api_token=$3, server_id=$4, server_name=$5,
		    channel_id=$6, channel_name=$7, is_active=$8, updated_at=$9
		WHERE id=$1
		RETURNING ` + integrationColumns
	row := tx.QueryRowContext(ctx, upd,
		id, integ.BaseURL, integ.APIToken,
		integ.ServerID, integ.ServerName, integ.ChannelID, integ.ChannelName,
		integ.IsActive, now,
	)
	updated, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления интеграции: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return updated, nil
}

// DeleteIntegration удаляет интеграцию по id.
func DeleteIntegration(db *sql.DB, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	res, err := db.ExecContext(ctx, "DELETE FROM discordant_integrations WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("ошибка удаления интеграции: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIntegration(row rowScanner) (*models.DiscordantIntegration, error) {
	var integ models.DiscordantIntegration
	if err := row.Scan(
		&integ.ID, &integ.BaseURL, &integ.APIToken,
		&integ.ServerID, &integ.ServerName, &integ.ChannelID, &integ.ChannelName,
		&integ.IsActive, &integ.CreatedAt, &integ.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &integ, nil
}
