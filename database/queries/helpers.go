package queries

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound возвращается, когда запрошенная запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

const (
	dbQueryTimeout = 5 * time.Second

	// DefaultEventLimit — сколько сырых событий отдаём админке по умолчанию.
	DefaultEventLimit = 100
	MaxEventLimit     = 500
)

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		s := ns.String
		return &s
	}
	return nil
}

// nullIfEmpty превращает пустую строку в NULL, чтобы не затирать
// ранее сохранённые значения при COALESCE-апдейтах.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
