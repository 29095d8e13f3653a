// Package discordant — клиент внешнего чат-бэкенда (Discordant API).
package discordant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/egor/portfoliorelay/models"
)

// ErrNoDefaultChannel возвращается, когда у активной интеграции не настроены
// сервер/канал по умолчанию, а вызов требует именно их.
var ErrNoDefaultChannel = errors.New("у интеграции не настроен канал по умолчанию")

// Client представляет клиента для взаимодействия с Discordant API.
// Исходящие вызовы блокирующие, с ограниченным тайм-аутом: зависший внешний
// бэкенд не должен бесконечно держать запрос ретрансляции.
type Client struct {
	baseURL        string
	apiToken       string
	defaultServer  string
	defaultChannel string
	client         *http.Client
}

// NewClient создаёт клиента из активной интеграции.
// Тайм-аут настраивается через DISCORDANT_API_TIMEOUT, по умолчанию 5s.
func NewClient(integ *models.DiscordantIntegration) *Client {
	timeout := 5 * time.Second
	if t := os.Getenv("DISCORDANT_API_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:        integ.BaseURL,
		apiToken:       integ.APIToken,
		defaultServer:  integ.ServerID,
		defaultChannel: integ.ChannelID,
		client:         &http.Client{Timeout: timeout},
	}
}

// VisitorPayload — тело запроса на создание зеркальной учётки посетителя.
type VisitorPayload struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	ServerID  string `json:"serverId,omitempty"`
}

// VisitorAccount — учётка посетителя на стороне Discordant.
type VisitorAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ChannelMessage — тело сообщения в канал.
type ChannelMessage struct {
	Content  string                 `json:"content"`
	UserID   *string                `json:"userId,omitempty"` // nil => анонимный отправитель
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MessageReceipt — подтверждение доставки сообщения в канал.
type MessageReceipt struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId,omitempty"`
}

// Server и Channel — справочные сущности для админки.
type Server struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// TranscriptPayload — агрегированная сводка завершённого звонка.
// Её получение на стороне Discordant запускает дальнейшую автоматизацию,
// поэтому звонок не дергает n8n напрямую.
type TranscriptPayload struct {
	SessionID   string   `json:"sessionId"`
	Transcript  string   `json:"transcript"`
	Duration    int      `json:"duration"` // секунды
	CallerID    string   `json:"callerId"`
	Summary     string   `json:"summary,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
}

// CreateWebsiteVisitor создаёт зеркальную учётку посетителя в Discordant.
func (c *Client) CreateWebsiteVisitor(ctx context.Context, p VisitorPayload) (*VisitorAccount, error) {
	var account VisitorAccount
	if err := c.post(ctx, "/api/website-visitors", p, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SendChannelMessage отправляет сообщение в канал (serverID, channelID).
func (c *Client) SendChannelMessage(ctx context.Context, serverID, channelID string, msg ChannelMessage) (*MessageReceipt, error) {
	msg.Content = sanitizeContent(msg.Content)

	var receipt MessageReceipt
	path := fmt.Sprintf("/api/servers/%s/channels/%s/messages", serverID, channelID)
	if err := c.post(ctx, path, msg, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// SendSystemNotification отправляет служебное уведомление в канал по умолчанию.
func (c *Client) SendSystemNotification(ctx context.Context, content string, meta map[string]interface{}) error {
	if c.defaultServer == "" || c.defaultChannel == "" {
		return ErrNoDefaultChannel
	}
	_, err := c.SendChannelMessage(ctx, c.defaultServer, c.defaultChannel, ChannelMessage{
		Content:  content,
		Metadata: meta,
	})
	return err
}

// SendCallTranscript отправляет единственную агрегированную сводку звонка
// в канал по умолчанию.
func (c *Client) SendCallTranscript(ctx context.Context, p TranscriptPayload) error {
	if c.defaultServer == "" || c.defaultChannel == "" {
		return ErrNoDefaultChannel
	}

	content := fmt.Sprintf(
		"📞 **Звонок завершён**\n\nЗвонивший: %s\nДлительность: %d с\n\n%s",
		p.CallerID, p.Duration, p.Transcript,
	)
	if p.Summary != "" {
		content += "\n\n**Сводка:** " + p.Summary
	}

	meta := map[string]interface{}{
		"source":    "voice_call",
		"sessionId": p.SessionID,
		"duration":  p.Duration,
	}
	if len(p.ActionItems) > 0 {
		meta["actionItems"] = p.ActionItems
	}

	_, err := c.SendChannelMessage(ctx, c.defaultServer, c.defaultChannel, ChannelMessage{
		Content:  content,
		Metadata: meta,
	})
	return err
}

// ListServers возвращает серверы, доступные токену интеграции.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	if err := c.get(ctx, "/api/servers", &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// ListChannels возвращает каналы сервера.
func (c *Client) ListChannels(ctx context.Context, serverID string) ([]Channel, error) {
	var channels []Channel
	if err := c.get(ctx, fmt.Sprintf("/api/servers/%s/channels", serverID), &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// ─────────────────────────────── транспорт

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("Discordant API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Discordant API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
