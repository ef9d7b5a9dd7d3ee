package storage

import (
	"errors"

	"SupportChat/internal/models"
)

// ErrChatNotFound возвращается, когда чат с указанным ID не существует.
var ErrChatNotFound = errors.New("чат не найден")

// DefaultMessageLimit — сколько сообщений отдается по умолчанию при
// загрузке истории. Параметр дизайна, не жесткий потолок.
const DefaultMessageLimit = 100

// ChatStore — операции хранилища, которые нужны сервису чатов.
// Реализации: PostgresStore (боевая) и MemoryStore (dev-режим и тесты).
// ChatStore is the persistence surface the chat service needs.
// Implementations: PostgresStore (production) and MemoryStore (dev mode
// and tests).
type ChatStore interface {
	// CreateChat создает чат со статусом pending.
	CreateChat(userID, username string) (models.Chat, error)
	// FindOpenChatForUser возвращает незакрытый чат пользователя или nil.
	FindOpenChatForUser(userID string) (*models.Chat, error)
	// FindChatByID возвращает ErrChatNotFound, если чата нет.
	FindChatByID(id string) (models.Chat, error)
	// ListChats возвращает чаты по убыванию последней активности.
	// Пустой фильтр исключает закрытые чаты.
	ListChats(statusFilter string) ([]models.Chat, error)
	// TouchChat обновляет lastMessageAt и переводит чат в active.
	TouchChat(id string) error
	// AppendMessage вставляет сообщение и затем делает TouchChat.
	// Эти две записи не транзакционны: lastMessageAt — рекомендательное
	// поле и используется только для сортировки списка чатов.
	AppendMessage(chatID, from, text string) (models.Message, error)
	// ListMessages возвращает сообщения по возрастанию (timestamp, id).
	ListMessages(chatID string, limit int) ([]models.Message, error)
	// MarkRead помечает прочитанными все непрочитанные сообщения
	// стороны from в чате. Возвращает число затронутых строк.
	MarkRead(chatID, from string) (int64, error)
	// CountUnread — число непрочитанных сообщений стороны from в чате.
	CountUnread(chatID, from string) (int, error)
	// CountUnreadActive суммирует CountUnread по всем active-чатам.
	// O(число активных чатов) — допустимо на масштабе службы поддержки
	// (десятки одновременных обращений).
	CountUnreadActive(from string) (int, error)
}
