package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"SupportChat/internal/models"
)

// MemoryStore — хранилище в памяти. Используется в dev-режиме, когда
// DATABASE_URL не установлена, и как бэкенд для тестов.
// MemoryStore is an in-memory store used in dev mode (no DATABASE_URL)
// and as the test backend.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]*models.Chat
	messages map[string][]models.Message // ключ: chatID, сообщения в порядке вставки
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*models.Chat),
		messages: make(map[string][]models.Message),
	}
}

func (s *MemoryStore) CreateChat(userID, username string) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	chat := models.Chat{
		ID:            uuid.NewString(),
		UserID:        userID,
		Username:      username,
		Status:        models.ChatStatusPending,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	s.chats[chat.ID] = &chat
	return chat, nil
}

func (s *MemoryStore) FindOpenChatForUser(userID string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Chat
	for _, chat := range s.chats {
		if chat.UserID != userID || chat.Status == models.ChatStatusClosed {
			continue
		}
		// Детеминированный выбор при гонке двух открытых чатов: самый старый.
		if found == nil || chat.CreatedAt.Before(found.CreatedAt) {
			found = chat
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

func (s *MemoryStore) FindChatByID(id string) (models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[id]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	return *chat, nil
}

func (s *MemoryStore) ListChats(statusFilter string) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chats []models.Chat
	for _, chat := range s.chats {
		if statusFilter == "" {
			if chat.Status == models.ChatStatusClosed {
				continue
			}
		} else if chat.Status != statusFilter {
			continue
		}
		chats = append(chats, *chat)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})
	return chats, nil
}

func (s *MemoryStore) TouchChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[id]
	if !ok {
		return ErrChatNotFound
	}
	chat.LastMessageAt = time.Now()
	chat.Status = models.ChatStatusActive
	return nil
}

func (s *MemoryStore) AppendMessage(chatID, from, text string) (models.Message, error) {
	s.mu.Lock()
	chat, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, ErrChatNotFound
	}
	s.nextID++
	msg := models.Message{
		ID:        s.nextID,
		ChatID:    chatID,
		From:      from,
		Text:      text,
		Timestamp: time.Now(),
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	chat.LastMessageAt = msg.Timestamp
	chat.Status = models.ChatStatusActive
	s.mu.Unlock()
	return msg, nil
}

func (s *MemoryStore) ListMessages(chatID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) MarkRead(chatID, from string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].From == from && !msgs[i].Read {
			msgs[i].Read = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountUnread(chatID, from string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countUnreadLocked(chatID, from), nil
}

func (s *MemoryStore) countUnreadLocked(chatID, from string) int {
	count := 0
	for _, msg := range s.messages[chatID] {
		if msg.From == from && !msg.Read {
			count++
		}
	}
	return count
}

func (s *MemoryStore) CountUnreadActive(from string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, chat := range s.chats {
		if chat.Status != models.ChatStatusActive {
			continue
		}
		total += s.countUnreadLocked(chat.ID, from)
	}
	return total, nil
}
