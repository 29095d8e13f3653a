package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscordantIntegration описывает подключение к внешнему чат-бэкенду.
// Инвариант: в любой момент активна не более одной интеграции —
// активация одной записи деактивирует остальные (в одной транзакции).
type DiscordantIntegration struct {
	ID          uuid.UUID `json:"id"`
	BaseURL     string    `json:"discordantBaseUrl"`
	APIToken    string    `json:"apiToken,omitempty"` // секрет, не логировать
	ServerID    string    `json:"serverId,omitempty"`
	ServerName  string    `json:"serverName,omitempty"`
	ChannelID   string    `json:"channelId,omitempty"`
	ChannelName string    `json:"channelName,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Admin представляет собой администратора панели управления.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "admin", "editor"
	Active       bool      `json:"active"`
}
