// Package workflow — best-effort уведомления n8n-вебхука.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Notifier отправляет события в n8n-вебхук. Доставка «не более одного раза»:
// никаких очередей и повторов, неудача логируется вызывающей стороной и
// никогда не роняет пользовательский запрос.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// NewNotifierFromEnv настраивает Notifier из N8N_WEBHOOK_URL.
// Пустая переменная — уведомления выключены, Enabled() == false.
func NewNotifierFromEnv() *Notifier {
	timeout := 5 * time.Second
	if t := os.Getenv("N8N_WEBHOOK_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Notifier{
		webhookURL: os.Getenv("N8N_WEBHOOK_URL"),
		client:     &http.Client{Timeout: timeout},
	}
}

// Enabled сообщает, настроен ли вебхук.
func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

// VisitorRef — кто написал.
type VisitorRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// DiscordantRef — куда ушло сообщение и под каким id.
type DiscordantRef struct {
	ServerID  string  `json:"serverId"`
	ChannelID string  `json:"channelId"`
	MessageID *string `json:"messageId,omitempty"`
}

// ChatPayload — тело уведомления о ретранслированном сообщении.
type ChatPayload struct {
	Message    string                 `json:"message"`
	SessionID  string                 `json:"sessionId"`
	Visitor    VisitorRef             `json:"visitor"`
	Discordant DiscordantRef          `json:"discordant"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type runResult struct {
	WorkflowID  string `json:"workflowId"`
	ExecutionID string `json:"executionId"`
}

// NotifyChatMessage отправляет уведомление и возвращает идентификаторы
// запуска, если n8n их вернул.
func (n *Notifier) NotifyChatMessage(ctx context.Context, p ChatPayload) (workflowID, executionID string, err error) {
	if !n.Enabled() {
		return "", "", fmt.Errorf("вебхук n8n не настроен")
	}

	if p.Metadata == nil {
		p.Metadata = map[string]interface{}{}
	}
	if _, ok := p.Metadata["source"]; !ok {
		p.Metadata["source"] = "portfolio_website"
	}
	p.Metadata["timestamp"] = time.Now().Format(time.RFC3339)

	payload, err := json.Marshal(p)
	if err != nil {
		return "", "", fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("n8n webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("n8n webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	// Тело ответа необязательно: пустой ответ — тоже успех.
	var run runResult
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return "", "", nil
	}
	return run.WorkflowID, run.ExecutionID, nil
}
