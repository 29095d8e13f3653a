package websocket

import (
	"encoding/json"

	"github.com/egor/portfoliorelay/models"
)

// Message представляет событие пайплайна для WebSocket
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage создает новое сообщение с указанным типом и данными
func NewMessage(messageType string, payload interface{}) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	message := Message{
		Type:    messageType,
		Payload: payloadJSON,
	}

	return json.Marshal(message)
}

// NewRelayEvent создает событие о ретранслированном сообщении чата
func NewRelayEvent(visitor *models.WebsiteVisitor, message *models.RelayedMessage) ([]byte, error) {
	payload := struct {
		Visitor *models.WebsiteVisitor `json:"visitor"`
		Message *models.RelayedMessage `json:"message"`
	}{
		Visitor: visitor,
		Message: message,
	}

	return NewMessage("relayed_message", payload)
}

// NewCallEvent создает событие жизненного цикла звонка
// (call-start / transcript / call-end).
func NewCallEvent(eventType, callID string, message *models.RelayedMessage) ([]byte, error) {
	payload := struct {
		EventType string                 `json:"eventType"`
		CallID    string                 `json:"callId"`
		Message   *models.RelayedMessage `json:"message,omitempty"`
	}{
		EventType: eventType,
		CallID:    callID,
		Message:   message,
	}

	return NewMessage("call_event", payload)
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(errorText string) ([]byte, error) {
	payload := struct {
		Error string `json:"error"`
	}{
		Error: errorText,
	}

	return NewMessage("error", payload)
}
