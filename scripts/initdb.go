package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	// Подключаемся к базе данных
	db, err := sql.Open("pgx", buildDSN())
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ошибка проверки соединения с БД: %v", err)
	}
	log.Println("Успешное подключение к базе данных")

	createTables(db)

	// Создаем администратора по умолчанию
	adminEmail := env("ADMIN_EMAIL", "admin@example.com")
	adminPassword := env("ADMIN_PASSWORD", "password")
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Ошибка хеширования пароля: %v", err)
	}

	adminID := uuid.New()
	_, err = db.Exec(`
		INSERT INTO admins (id, name, email, password_hash, role, active)
		VALUES ($1, $2, $3, $4, 'admin', true)
		ON CONFLICT (email) DO NOTHING
	`, adminID, "Администратор", adminEmail, string(passwordHash))
	if err != nil {
		log.Fatalf("Ошибка создания администратора: %v", err)
	}
	log.Printf("Администратор: %s", adminEmail)

	// Пример интеграции (неактивная, чтобы не мешать боевой)
	if baseURL := os.Getenv("DISCORDANT_BASE_URL"); baseURL != "" {
		_, err = db.Exec(`
			INSERT INTO discordant_integrations
			    (id, base_url, api_token, server_id, server_name, channel_id, channel_name, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, false, now(), now())
		`, uuid.New(), baseURL, env("DISCORDANT_API_TOKEN", ""),
			env("DISCORDANT_SERVER_ID", ""), "Portfolio",
			env("DISCORDANT_CHANNEL_ID", ""), "website-chat")
		if err != nil {
			log.Fatalf("Ошибка создания интеграции: %v", err)
		}
		log.Printf("Создана интеграция для %s (активируйте через админку)", baseURL)
	}

	log.Println("База данных успешно инициализирована")
}

// Создание таблиц базы данных
func createTables(db *sql.DB) {
	// Посетители сайта: не более одной записи на session_id
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS website_visitors (
			id                 UUID PRIMARY KEY,
			session_id         TEXT NOT NULL UNIQUE,
			name               TEXT NOT NULL DEFAULT '',
			email              TEXT NOT NULL DEFAULT '',
			ip_address         TEXT,
			user_agent         TEXT,
			discordant_user_id TEXT,
			is_active          BOOLEAN NOT NULL DEFAULT true,
			last_seen          TIMESTAMPTZ NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL
		)`)

	// Ретранслированные сообщения: seq задает порядок транскрипта
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS relayed_messages (
			id                    UUID PRIMARY KEY,
			seq                   BIGSERIAL,
			visitor_id            UUID NOT NULL REFERENCES website_visitors(id),
			content               TEXT NOT NULL,
			discordant_message_id TEXT,
			n8n_workflow_id       TEXT,
			n8n_execution_id      TEXT,
			is_from_assistant     BOOLEAN NOT NULL DEFAULT false,
			metadata              JSONB,
			created_at            TIMESTAMPTZ NOT NULL
		)`)
	mustExec(db, `CREATE INDEX IF NOT EXISTS relayed_messages_visitor_seq
		ON relayed_messages (visitor_id, seq)`)

	// Сырые события голосового вебхука
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS voice_events (
			id         UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			call_id    TEXT,
			payload    JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`)

	// Интеграции Discordant: активна не более одной
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS discordant_integrations (
			id           UUID PRIMARY KEY,
			base_url     TEXT NOT NULL,
			api_token    TEXT NOT NULL,
			server_id    TEXT NOT NULL DEFAULT '',
			server_name  TEXT NOT NULL DEFAULT '',
			channel_id   TEXT NOT NULL DEFAULT '',
			channel_name TEXT NOT NULL DEFAULT '',
			is_active    BOOLEAN NOT NULL DEFAULT false,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`)

	// Администраторы панели управления
	mustExec(db, `
		CREATE TABLE IF NOT EXISTS admins (
			id            UUID PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'admin',
			active        BOOLEAN NOT NULL DEFAULT true
		)`)

	log.Println("Таблицы созданы")
}

func mustExec(db *sql.DB, q string) {
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("Ошибка создания таблицы: %v\n%s", err, q)
	}
}

func buildDSN() string {
	host := env("PG_HOST", "localhost")
	port := env("PG_PORT", "5432")
	user := env("PG_USER", "postgres")
	password := os.Getenv("PG_PASSWORD")
	dbname := env("PG_DATABASE", "portfoliorelay")
	sslmode := env("PG_SSL_MODE", "disable")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
