package storage

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"SupportChat/internal/models"
)

// PostgresStore — боевое хранилище чатов поверх PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore открывает соединение, проверяет его и разворачивает
// схему (idempotent: CREATE TABLE / CREATE INDEX IF NOT EXISTS).
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL не установлена")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ошибка проверки соединения с базой данных: %w", err)
	}
	log.Println("Успешное подключение к базе данных.")

	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	createTablesSQL := `
        CREATE TABLE IF NOT EXISTS chats (
            id UUID PRIMARY KEY,
            user_id TEXT NOT NULL,
            username TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            last_message_at TIMESTAMP NOT NULL DEFAULT NOW(),
            created_at TIMESTAMP NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id UUID REFERENCES chats(id) NOT NULL,
            is_from_user BOOLEAN NOT NULL,
            message TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP NOT NULL DEFAULT NOW()
        );
    `
	if _, err := s.db.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("ошибка создания таблиц: %w", err)
	}
	log.Println("Создание таблиц (если не существуют) завершено.")

	createIndexesSQL := `
        CREATE INDEX IF NOT EXISTS idx_chats_user_id_status ON chats(user_id, status);
        CREATE INDEX IF NOT EXISTS idx_chats_last_message_at ON chats(last_message_at);
        CREATE INDEX IF NOT EXISTS idx_messages_chat_id_created_at ON messages(chat_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(chat_id, is_from_user, is_read);
    `
	// Индексы создаем по одному, чтобы изолировать возможные ошибки.
	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := s.db.Exec(trimmed); err != nil {
			log.Printf("Предупреждение: ошибка при создании индекса ('%s'): %v", trimmed, err)
		}
	}
	log.Println("Инициализация схемы чатов завершена.")
	return nil
}

// Close закрывает соединение с базой данных.
func (s *PostgresStore) Close() {
	if s.db != nil {
		s.db.Close()
		log.Println("Соединение с базой данных закрыто.")
	}
}

func (s *PostgresStore) CreateChat(userID, username string) (models.Chat, error) {
	chat := models.Chat{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		Status:   models.ChatStatusPending,
	}
	err := s.db.QueryRow(`
        INSERT INTO chats (id, user_id, username, status, last_message_at, created_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING last_message_at, created_at`,
		chat.ID, chat.UserID, chat.Username, chat.Status,
	).Scan(&chat.LastMessageAt, &chat.CreatedAt)
	if err != nil {
		log.Printf("CreateChat: ошибка создания чата для пользователя %s: %v", userID, err)
		return models.Chat{}, err
	}
	log.Printf("Чат %s для пользователя %s создан.", chat.ID, userID)
	return chat, nil
}

const chatColumns = "id, user_id, username, status, last_message_at, created_at"

func scanChat(row interface{ Scan(...any) error }) (models.Chat, error) {
	var c models.Chat
	var username sql.NullString
	err := row.Scan(&c.ID, &c.UserID, &username, &c.Status, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		return models.Chat{}, err
	}
	c.Username = username.String
	return c, nil
}

func (s *PostgresStore) FindOpenChatForUser(userID string) (*models.Chat, error) {
	row := s.db.QueryRow(`
        SELECT `+chatColumns+` FROM chats
        WHERE user_id = $1 AND status != $2
        ORDER BY created_at ASC
        LIMIT 1`, userID, models.ChatStatusClosed)
	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.Printf("FindOpenChatForUser: ошибка поиска чата пользователя %s: %v", userID, err)
		return nil, err
	}
	return &chat, nil
}

func (s *PostgresStore) FindChatByID(id string) (models.Chat, error) {
	row := s.db.QueryRow(`SELECT `+chatColumns+` FROM chats WHERE id = $1`, id)
	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		log.Printf("FindChatByID: ошибка поиска чата %s: %v", id, err)
		return models.Chat{}, err
	}
	return chat, nil
}

func (s *PostgresStore) ListChats(statusFilter string) ([]models.Chat, error) {
	var rows *sql.Rows
	var err error
	if statusFilter == "" {
		rows, err = s.db.Query(`
            SELECT `+chatColumns+` FROM chats
            WHERE status != $1
            ORDER BY last_message_at DESC`, models.ChatStatusClosed)
	} else {
		rows, err = s.db.Query(`
            SELECT `+chatColumns+` FROM chats
            WHERE status = $1
            ORDER BY last_message_at DESC`, statusFilter)
	}
	if err != nil {
		log.Printf("ListChats: ошибка получения списка чатов (фильтр '%s'): %v", statusFilter, err)
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		chat, errScan := scanChat(rows)
		if errScan != nil {
			log.Printf("ListChats: ошибка сканирования чата: %v", errScan)
			continue
		}
		chats = append(chats, chat)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *PostgresStore) TouchChat(id string) error {
	res, err := s.db.Exec(`
        UPDATE chats SET last_message_at = NOW(), status = $2
        WHERE id = $1`, id, models.ChatStatusActive)
	if err != nil {
		log.Printf("TouchChat: ошибка обновления чата %s: %v", id, err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMessage(chatID, from, text string) (models.Message, error) {
	msg := models.Message{
		ChatID: chatID,
		From:   from,
		Text:   text,
	}
	err := s.db.QueryRow(`
        INSERT INTO messages (chat_id, is_from_user, message, is_read, created_at)
        VALUES ($1, $2, $3, FALSE, NOW())
        RETURNING id, created_at`,
		chatID, from == models.FromUser, text,
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		log.Printf("AppendMessage: ошибка добавления сообщения в чат %s: %v", chatID, err)
		return models.Message{}, err
	}

	// Вторая запись нарочно вне транзакции: lastMessageAt — рекомендательное поле.
	if err := s.TouchChat(chatID); err != nil {
		log.Printf("AppendMessage: не удалось обновить lastMessageAt чата %s: %v", chatID, err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(chatID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	rows, err := s.db.Query(`
        SELECT id, chat_id, is_from_user, message, is_read, created_at
        FROM messages
        WHERE chat_id = $1
        ORDER BY created_at ASC, id ASC
        LIMIT $2`, chatID, limit)
	if err != nil {
		log.Printf("ListMessages: ошибка получения сообщений чата %s: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var fromUser bool
		if errScan := rows.Scan(&m.ID, &m.ChatID, &fromUser, &m.Text, &m.Read, &m.Timestamp); errScan != nil {
			log.Printf("ListMessages: ошибка сканирования сообщения чата %s: %v", chatID, errScan)
			continue
		}
		if fromUser {
			m.From = models.FromUser
		} else {
			m.From = models.FromAdmin
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *PostgresStore) MarkRead(chatID, from string) (int64, error) {
	res, err := s.db.Exec(`
        UPDATE messages SET is_read = TRUE
        WHERE chat_id = $1 AND is_from_user = $2 AND is_read = FALSE`,
		chatID, from == models.FromUser)
	if err != nil {
		log.Printf("MarkRead: ошибка пометки сообщений чата %s (from=%s): %v", chatID, from, err)
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *PostgresStore) CountUnread(chatID, from string) (int, error) {
	var count int
	err := s.db.QueryRow(`
        SELECT COUNT(*) FROM messages
        WHERE chat_id = $1 AND is_from_user = $2 AND is_read = FALSE`,
		chatID, from == models.FromUser).Scan(&count)
	if err != nil {
		log.Printf("CountUnread: ошибка подсчета непрочитанных чата %s: %v", chatID, err)
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) CountUnreadActive(from string) (int, error) {
	// Намеренно простой fan-out по активным чатам; на масштабе службы
	// поддержки активных чатов десятки, не миллионы.
	chats, err := s.ListChats(models.ChatStatusActive)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, chat := range chats {
		n, errCount := s.CountUnread(chat.ID, from)
		if errCount != nil {
			return 0, errCount
		}
		total += n
	}
	return total, nil
}
