package models

import (
	"time"

	"github.com/google/uuid"
)

// WebsiteVisitor представляет собой запись о посетителе сайта.
// Ключ связи клиента и сервера — SessionID (уникален, не более одной записи).
type WebsiteVisitor struct {
	ID             uuid.UUID `json:"id"`
	SessionID      string    `json:"sessionId"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	IPAddress      *string   `json:"ipAddress,omitempty"`
	UserAgent      *string   `json:"userAgent,omitempty"`
	ExternalUserID *string   `json:"discordantUserId,omitempty"` // ID посетителя в Discordant, если создан
	IsActive       bool      `json:"isActive"`
	LastSeen       time.Time `json:"lastSeen"`
	CreatedAt      time.Time `json:"createdAt"`
}

// VisitorAttrs — атрибуты, которые можно «домержить» в запись посетителя.
// Пустые строки и nil-указатели не затирают ранее сохранённые значения.
type VisitorAttrs struct {
	Name      string
	Email     string
	IPAddress string
	UserAgent string
}

// VisitorInfo — данные посетителя, присланные клиентом вместе с сообщением.
// Это только контекст: серверу нельзя доверять этим полям как учётным данным.
type VisitorInfo struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}
