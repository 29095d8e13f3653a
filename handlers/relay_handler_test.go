package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postJSON(t *testing.T, e *testEnv, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func validRelayBody() map[string]interface{} {
	return map[string]interface{}{
		"message":   "Здравствуйте, расскажите про проекты",
		"serverId":  "srv-1",
		"channelId": "chan-1",
		"sessionId": "sess-1",
	}
}

// Пропущенное обязательное поле — 4xx и никаких побочных эффектов.
func TestRelayMessageValidation(t *testing.T) {
	for _, missing := range []string{"message", "serverId", "channelId", "sessionId"} {
		e := newTestEnv().withIntegration()
		body := validRelayBody()
		delete(body, missing)

		w := postJSON(t, e, "/api/relay/message", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("без %s: ожидали 400, получили %d", missing, w.Code)
		}
		if e.store.upsertCalls != 0 {
			t.Errorf("без %s: upsert не должен вызываться", missing)
		}
		if e.store.addMessageCalls != 0 || len(e.store.messages) != 0 {
			t.Errorf("без %s: сообщение не должно сохраняться", missing)
		}
	}
}

// Нет активной интеграции — 404 до любых записей.
func TestRelayMessageNoActiveIntegration(t *testing.T) {
	e := newTestEnv()

	w := postJSON(t, e, "/api/relay/message", validRelayBody())
	if w.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d: %s", w.Code, w.Body.String())
	}
	if e.store.upsertCalls != 0 || len(e.store.messages) != 0 {
		t.Error("без интеграции не должно быть побочных эффектов")
	}
}

// Счастливый путь: новый посетитель, зеркальная учётка, доставка, n8n.
func TestRelayMessageSuccess(t *testing.T) {
	e := newTestEnv().withIntegration()

	w := postJSON(t, e, "/api/relay/message", map[string]interface{}{
		"message":   "Привет!",
		"serverId":  "srv-1",
		"channelId": "chan-1",
		"sessionId": "sess-42",
		"visitorInfo": map[string]interface{}{
			"name":  "Иван",
			"email": "ivan@example.com",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success      bool `json:"success"`
		N8nTriggered bool `json:"n8nTriggered"`
		Message      struct {
			DiscordantMessageID *string `json:"discordantMessageId"`
			N8nWorkflowID       *string `json:"n8nWorkflowId"`
		} `json:"message"`
		DiscordantMessage *struct {
			ID string `json:"id"`
		} `json:"discordantMessage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !resp.Success || !resp.N8nTriggered {
		t.Errorf("success=%v n8nTriggered=%v, ожидали true/true", resp.Success, resp.N8nTriggered)
	}
	if resp.DiscordantMessage == nil || resp.DiscordantMessage.ID == "" {
		t.Error("ожидали подтверждение доставки в Discordant")
	}
	if resp.Message.DiscordantMessageID == nil {
		t.Error("ожидали заполненный discordantMessageId")
	}
	if resp.Message.N8nWorkflowID == nil || *resp.Message.N8nWorkflowID != "wf-1" {
		t.Error("ожидали заполненный n8nWorkflowId")
	}

	if e.discordant.createVisitorCalls != 1 {
		t.Errorf("ожидали 1 создание учётки, было %d", e.discordant.createVisitorCalls)
	}
	v := e.store.visitors["sess-42"]
	if v == nil || v.ExternalUserID == nil {
		t.Fatal("ожидали backfill externalUserId у посетителя")
	}
	if v.Name != "Иван" || v.Email != "ivan@example.com" {
		t.Errorf("атрибуты посетителя не домержены: %+v", v)
	}
	if e.notifier.last.SessionID != "sess-42" {
		t.Errorf("в n8n ушла не та сессия: %s", e.notifier.last.SessionID)
	}
}

// Повторный вызов той же сессией не создаёт вторую учётку в Discordant.
func TestRelayMessageExistingVisitor(t *testing.T) {
	e := newTestEnv().withIntegration()

	for i := 0; i < 2; i++ {
		if w := postJSON(t, e, "/api/relay/message", validRelayBody()); w.Code != http.StatusOK {
			t.Fatalf("запрос %d: код %d", i, w.Code)
		}
	}

	if len(e.store.visitors) != 1 {
		t.Errorf("ожидали одну запись посетителя, есть %d", len(e.store.visitors))
	}
	if e.discordant.createVisitorCalls != 1 {
		t.Errorf("учётка должна создаваться один раз, было %d", e.discordant.createVisitorCalls)
	}
	if len(e.store.messages) != 2 {
		t.Errorf("ожидали 2 локальные записи, есть %d", len(e.store.messages))
	}
}

// Discordant лежит: ответ всё равно успешный, локальная запись есть,
// корреляционный id остаётся пустым.
func TestRelayMessageDiscordantUnreachable(t *testing.T) {
	e := newTestEnv().withIntegration()
	e.discordant.failCreateVisitor = true
	e.discordant.failSend = true

	w := postJSON(t, e, "/api/relay/message", validRelayBody())
	if w.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success           bool            `json:"success"`
		DiscordantMessage json.RawMessage `json:"discordantMessage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Error("ожидали success=true при недоступном Discordant")
	}
	if string(resp.DiscordantMessage) != "null" {
		t.Errorf("ожидали discordantMessage=null, получили %s", resp.DiscordantMessage)
	}

	if len(e.store.messages) != 1 {
		t.Fatalf("ожидали 1 локальную запись, есть %d", len(e.store.messages))
	}
	if e.store.messages[0].DiscordantMessageID != nil {
		t.Error("discordantMessageId должен остаться пустым")
	}
}

// Падение n8n молча проглатывается: success=true, n8nTriggered=false.
func TestRelayMessageWorkflowFailure(t *testing.T) {
	e := newTestEnv().withIntegration()
	e.notifier.fail = true

	w := postJSON(t, e, "/api/relay/message", validRelayBody())
	if w.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", w.Code)
	}

	var resp struct {
		Success      bool `json:"success"`
		N8nTriggered bool `json:"n8nTriggered"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.N8nTriggered {
		t.Errorf("success=%v n8nTriggered=%v, ожидали true/false", resp.Success, resp.N8nTriggered)
	}
	if e.store.messages[0].WorkflowID != nil {
		t.Error("workflow id не должен заполняться при падении вебхука")
	}
}
