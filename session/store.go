// Package session — долговременная псевдо-идентичность анонимного посетителя.
//
// Это клиентская часть пайплайна: стабильный непрозрачный токен сессии плюс
// накопленные имя/email/метаданные. Сервер этим данным не доверяет — они
// только контекст, прикладываемый к ретранслируемым сообщениям.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Имена файлов повторяют два ключа локального хранилища браузерной версии.
const (
	sessionIDFile   = "portfolio_session_id"
	sessionDataFile = "portfolio_session_data"
)

// Identity — накопленное локальное состояние посетителя.
type Identity struct {
	SessionID string                 `json:"sessionId"`
	Name      string                 `json:"name,omitempty"`
	Email     string                 `json:"email,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	LastSeen  time.Time              `json:"lastSeen"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// RelayIdentity — подмножество состояния, которое вообще уходит на сервер.
type RelayIdentity struct {
	SessionID string                 `json:"sessionId"`
	Name      string                 `json:"name,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Store держит идентичность в файлах каталога dir. Любой сбой персистентности
// проглатывается: Store продолжает работать на эфемерном состоянии в памяти
// до конца жизни процесса. Методы никогда не блокируют и не возвращают ошибок.
type Store struct {
	mu  sync.Mutex
	dir string

	sessionID string
	data      Identity
}

// NewStore создаёт Store поверх каталога dir (создаётся при необходимости).
func NewStore(dir string) *Store {
	s := &Store{dir: dir}
	_ = os.MkdirAll(dir, 0o755)
	s.load()
	return s
}

// SessionID возвращает стабильный токен сессии, генерируя и сохраняя его
// при первом обращении.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionIDLocked()
}

func (s *Store) sessionIDLocked() string {
	if s.sessionID != "" {
		return s.sessionID
	}
	if raw, err := os.ReadFile(filepath.Join(s.dir, sessionIDFile)); err == nil && len(raw) > 0 {
		s.sessionID = string(raw)
		return s.sessionID
	}

	s.sessionID = uuid.NewString()
	// Сбой записи не фатален: токен останется эфемерным.
	_ = os.WriteFile(filepath.Join(s.dir, sessionIDFile), []byte(s.sessionID), 0o644)
	return s.sessionID
}

// RecordIdentity домерживает представленные посетителем имя и email,
// не затирая остальные накопленные метаданные.
func (s *Store) RecordIdentity(name, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != "" {
		s.data.Name = name
	}
	if email != "" {
		s.data.Email = email
	}
	s.touchLocked(map[string]interface{}{
		"identityProvidedAt": time.Now().Format(time.RFC3339),
	})
	s.persistLocked()
}

// RecordNavigation отмечает переход на страницу. Безопасно вызывать на каждом
// изменении маршрута, включая программную навигацию и back/forward.
func (s *Store) RecordNavigation(path string, extra map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := map[string]interface{}{
		"currentPage":   path,
		"pageVisitedAt": time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		merged[k] = v
	}
	s.touchLocked(merged)
	s.persistLocked()
}

// ExportForRelay возвращает ровно то подмножество состояния, которое
// отправляется серверу вместе с сообщением.
func (s *Store) ExportForRelay() RelayIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := make(map[string]interface{}, len(s.data.Metadata)+1)
	for k, v := range s.data.Metadata {
		meta[k] = v
	}
	meta["lastActivity"] = time.Now().Format(time.RFC3339)

	return RelayIdentity{
		SessionID: s.sessionIDLocked(),
		Name:      s.data.Name,
		Email:     s.data.Email,
		Metadata:  meta,
	}
}

// Clear стирает сохранённую идентичность (используется в тестах и при
// явном сбросе).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = ""
	s.data = Identity{}
	_ = os.Remove(filepath.Join(s.dir, sessionIDFile))
	_ = os.Remove(filepath.Join(s.dir, sessionDataFile))
}

// ─────────────────────────────── внутреннее

func (s *Store) touchLocked(extra map[string]interface{}) {
	now := time.Now()
	if s.data.CreatedAt.IsZero() {
		s.data.CreatedAt = now
	}
	s.data.LastSeen = now
	s.data.SessionID = s.sessionIDLocked()

	if s.data.Metadata == nil {
		s.data.Metadata = map[string]interface{}{}
	}
	for k, v := range extra {
		s.data.Metadata[k] = v
	}
}

func (s *Store) load() {
	raw, err := os.ReadFile(filepath.Join(s.dir, sessionDataFile))
	if err != nil {
		return
	}
	// Битый файл игнорируем — начнём с чистого состояния.
	var data Identity
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	s.data = data
}

func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.dir, sessionDataFile), raw, 0o644)
}
