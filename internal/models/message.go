package models

import "time"

// Message — одно сообщение в чате поддержки. После создания изменяется
// только флаг Read. ID назначается хранилищем монотонно и служит
// tie-break'ом при одинаковых Timestamp.
// Message is one utterance in a support chat. Immutable after creation
// except for the Read flag. ID is a store-assigned monotonic sequence
// used as a tie-break for equal timestamps.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chatId"`
	From      string    `json:"from"` // models.FromUser | models.FromAdmin
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
