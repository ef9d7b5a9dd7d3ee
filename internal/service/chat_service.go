package service

import (
	"errors"
	"log"
	"strings"
	"sync"

	"SupportChat/internal/models"
	"SupportChat/internal/storage"
)

// ErrEmptyMessage возвращается при попытке отправить пустое сообщение.
var ErrEmptyMessage = errors.New("текст сообщения не может быть пустым")

// ErrChatNotFound — реэкспорт ошибки хранилища для вызывающих слоев.
var ErrChatNotFound = storage.ErrChatNotFound

// ChatService — бизнес-логика чатов поддержки поверх хранилища:
// политика "один открытый чат на пользователя", отправка и чтение
// сообщений, счетчики непрочитанного.
type ChatService struct {
	store storage.ChatStore

	// Мьютексы по пользователям сериализуют GetOrCreateChat: без них два
	// почти одновременных первых сообщения могли бы создать два открытых
	// чата для одного пользователя.
	userLocks   map[string]*sync.Mutex
	userLocksMu sync.Mutex
}

func NewChatService(store storage.ChatStore) *ChatService {
	return &ChatService{
		store:     store,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (cs *ChatService) lockForUser(userID string) *sync.Mutex {
	cs.userLocksMu.Lock()
	defer cs.userLocksMu.Unlock()
	mu, ok := cs.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		cs.userLocks[userID] = mu
	}
	return mu
}

// GetOrCreateChat возвращает открытый чат пользователя, создавая его при
// отсутствии. Вызовы для одного пользователя сериализованы.
func (cs *ChatService) GetOrCreateChat(userID, username string) (models.Chat, error) {
	mu := cs.lockForUser(userID)
	mu.Lock()
	defer mu.Unlock()

	chat, err := cs.store.FindOpenChatForUser(userID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat != nil {
		return *chat, nil
	}
	created, err := cs.store.CreateChat(userID, username)
	if err != nil {
		return models.Chat{}, err
	}
	log.Printf("Создан новый чат %s для пользователя %s (%s).", created.ID, userID, username)
	return created, nil
}

// Send сохраняет сообщение в чате. Отклоняет пустой текст и
// несуществующий chatID.
func (cs *ChatService) Send(chatID, from, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if _, err := cs.store.FindChatByID(chatID); err != nil {
		return models.Message{}, err
	}
	return cs.store.AppendMessage(chatID, from, text)
}

// Chat возвращает чат по ID.
func (cs *ChatService) Chat(chatID string) (models.Chat, error) {
	return cs.store.FindChatByID(chatID)
}

// History возвращает чат и его сообщения.
func (cs *ChatService) History(chatID string) (models.Chat, []models.Message, error) {
	chat, err := cs.store.FindChatByID(chatID)
	if err != nil {
		return models.Chat{}, nil, err
	}
	messages, err := cs.store.ListMessages(chatID, storage.DefaultMessageLimit)
	if err != nil {
		return models.Chat{}, nil, err
	}
	return chat, messages, nil
}

// ChatForUser возвращает открытый чат пользователя с историей или
// (nil, nil, nil), если чата нет.
func (cs *ChatService) ChatForUser(userID string) (*models.Chat, []models.Message, error) {
	chat, err := cs.store.FindOpenChatForUser(userID)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil {
		return nil, nil, nil
	}
	messages, err := cs.store.ListMessages(chat.ID, storage.DefaultMessageLimit)
	if err != nil {
		return nil, nil, err
	}
	return chat, messages, nil
}

// ListAll возвращает чаты для админской панели. Пустой фильтр
// исключает закрытые.
func (cs *ChatService) ListAll(statusFilter string) ([]models.Chat, error) {
	return cs.store.ListChats(statusFilter)
}

// MarkRead помечает прочитанными сообщения стороны from. Идемпотентна.
func (cs *ChatService) MarkRead(chatID, from string) error {
	if _, err := cs.store.FindChatByID(chatID); err != nil {
		return err
	}
	_, err := cs.store.MarkRead(chatID, from)
	return err
}

// UnreadFor — число непрочитанных сообщений стороны from в чате.
func (cs *ChatService) UnreadFor(chatID, from string) (int, error) {
	return cs.store.CountUnread(chatID, from)
}

// UnreadForAllAdmins — суммарное непрочитанное от пользователей по всем
// активным чатам (бейдж в админской панели).
func (cs *ChatService) UnreadForAllAdmins() (int, error) {
	return cs.store.CountUnreadActive(models.FromUser)
}
