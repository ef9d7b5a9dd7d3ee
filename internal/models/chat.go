package models

import "time"

// Статусы чата. "closed" зарезервирован в модели данных, но ни один
// обработчик его пока не выставляет — чат не закрывается из интерфейса.
// Chat statuses. "closed" is reserved in the data model but no handler
// sets it yet.
const (
	ChatStatusPending = "pending"
	ChatStatusActive  = "active"
	ChatStatusClosed  = "closed"
)

// Сторона-отправитель сообщения.
// Message sender side.
const (
	FromUser  = "user"
	FromAdmin = "admin"
)

// Chat — обращение клиента в поддержку. Инвариант: на одного пользователя
// приходится не более одного незакрытого чата.
// Chat is a client's support conversation. Invariant: at most one
// non-closed chat per user.
type Chat struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"` // денормализовано для отображения без join
	Status        string    `json:"status"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
}
