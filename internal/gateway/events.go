package gateway

import (
	"encoding/json"

	"SupportChat/internal/models"
)

// Имена событий — проводной контракт клиента. Входящие события образуют
// закрытый набор и диспетчеризуются одним switch в handleEvent.
// Event names are the client wire contract. Inbound events form a closed
// set dispatched by a single switch in handleEvent.
const (
	// входящие / inbound
	EventGetChat        = "get-chat"
	EventSendMessage    = "send-message"
	EventMarkRead       = "mark-read"
	EventGetUnreadCount = "get-unread-count"

	// исходящие / outbound
	EventChatData     = "chat-data"
	EventChatsList    = "chats-list"
	EventNewMessage   = "new-message"
	EventMessagesRead = "messages-read"
	EventUnreadCount  = "unread-count"
	EventError        = "error"
)

// Envelope — обертка каждого кадра в обе стороны.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	ChatID string `json:"chatId,omitempty"`
	Text   string `json:"text"`
}

type MarkReadPayload struct {
	ChatID string `json:"chatId"`
}

// ChatDataPayload — ответ пользователю на get-chat. Chat равен null,
// если у пользователя еще нет чата.
type ChatDataPayload struct {
	Chat     *models.Chat     `json:"chat"`
	Messages []models.Message `json:"messages"`
}

type MessagesReadPayload struct {
	ChatID string `json:"chatId"`
	From   string `json:"from"` // чья сторона была помечена прочитанной
}

type UnreadCountPayload struct {
	Count int `json:"count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// marshalEvent собирает кадр; ошибка сериализации здесь — ошибка
// программиста, поэтому она только логируется вызывающим.
func marshalEvent(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}
