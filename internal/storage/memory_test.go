package storage

import (
	"fmt"
	"testing"

	"SupportChat/internal/models"
)

func mustCreateChat(t *testing.T, s *MemoryStore, userID, username string) models.Chat {
	t.Helper()
	chat, err := s.CreateChat(userID, username)
	if err != nil {
		t.Fatalf("CreateChat(%s): %v", userID, err)
	}
	return chat
}

func mustAppend(t *testing.T, s *MemoryStore, chatID, from, text string) models.Message {
	t.Helper()
	msg, err := s.AppendMessage(chatID, from, text)
	if err != nil {
		t.Fatalf("AppendMessage(%s, %s): %v", chatID, from, err)
	}
	return msg
}

func TestAppendMessageOrdering(t *testing.T) {
	s := NewMemoryStore()
	chat := mustCreateChat(t, s, "u1", "alice")

	for i := 0; i < 5; i++ {
		mustAppend(t, s, chat.ID, models.FromUser, fmt.Sprintf("msg %d", i))
	}

	msgs, err := s.ListMessages(chat.ID, DefaultMessageLimit)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("ожидалось 5 сообщений, получено %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("сообщение %d раньше предыдущего по времени", i)
		}
		if msgs[i].ID <= msgs[i-1].ID {
			t.Errorf("ID сообщений не монотонны: %d после %d", msgs[i].ID, msgs[i-1].ID)
		}
	}
}

func TestListMessagesLimit(t *testing.T) {
	s := NewMemoryStore()
	chat := mustCreateChat(t, s, "u1", "alice")

	for i := 0; i < DefaultMessageLimit+20; i++ {
		mustAppend(t, s, chat.ID, models.FromUser, "x")
	}

	msgs, err := s.ListMessages(chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != DefaultMessageLimit {
		t.Fatalf("ожидался лимит %d, получено %d", DefaultMessageLimit, len(msgs))
	}
}

func TestAppendMessageActivatesChat(t *testing.T) {
	s := NewMemoryStore()
	chat := mustCreateChat(t, s, "u1", "alice")
	if chat.Status != models.ChatStatusPending {
		t.Fatalf("новый чат должен быть pending, статус %q", chat.Status)
	}

	mustAppend(t, s, chat.ID, models.FromUser, "привет")

	got, err := s.FindChatByID(chat.ID)
	if err != nil {
		t.Fatalf("FindChatByID: %v", err)
	}
	if got.Status != models.ChatStatusActive {
		t.Errorf("после сообщения чат должен быть active, статус %q", got.Status)
	}
	if got.LastMessageAt.Before(chat.LastMessageAt) {
		t.Errorf("lastMessageAt не обновился")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s := NewMemoryStore()
	chat := mustCreateChat(t, s, "u1", "alice")
	mustAppend(t, s, chat.ID, models.FromUser, "один")
	mustAppend(t, s, chat.ID, models.FromUser, "два")
	mustAppend(t, s, chat.ID, models.FromAdmin, "ответ")

	n, err := s.MarkRead(chat.ID, models.FromUser)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 2 {
		t.Errorf("ожидалось 2 затронутых сообщения, получено %d", n)
	}

	count, err := s.CountUnread(chat.ID, models.FromUser)
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if count != 0 {
		t.Errorf("после MarkRead непрочитанных должно быть 0, получено %d", count)
	}

	// Повторный вызов ничего не трогает и не падает.
	n, err = s.MarkRead(chat.ID, models.FromUser)
	if err != nil {
		t.Fatalf("повторный MarkRead: %v", err)
	}
	if n != 0 {
		t.Errorf("повторный MarkRead затронул %d сообщений", n)
	}

	// Сообщения админа не задеты.
	adminUnread, err := s.CountUnread(chat.ID, models.FromAdmin)
	if err != nil {
		t.Fatalf("CountUnread(admin): %v", err)
	}
	if adminUnread != 1 {
		t.Errorf("непрочитанных от админа должно остаться 1, получено %d", adminUnread)
	}
}

func TestListChatsFilters(t *testing.T) {
	s := NewMemoryStore()

	pending := mustCreateChat(t, s, "u1", "alice")

	active := mustCreateChat(t, s, "u2", "bob")
	mustAppend(t, s, active.ID, models.FromUser, "привет")

	closed := mustCreateChat(t, s, "u3", "carol")
	s.mu.Lock()
	s.chats[closed.ID].Status = models.ChatStatusClosed
	s.mu.Unlock()

	// Пустой фильтр исключает закрытые.
	chats, err := s.ListChats("")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("ожидалось 2 чата без фильтра, получено %d", len(chats))
	}
	for _, c := range chats {
		if c.Status == models.ChatStatusClosed {
			t.Errorf("закрытый чат %s попал в выборку", c.ID)
		}
	}

	// Сортировка по убыванию активности: active трогали позже pending.
	if chats[0].ID != active.ID {
		t.Errorf("первым должен идти чат с последней активностью")
	}

	pendingOnly, err := s.ListChats(models.ChatStatusPending)
	if err != nil {
		t.Fatalf("ListChats(pending): %v", err)
	}
	if len(pendingOnly) != 1 || pendingOnly[0].ID != pending.ID {
		t.Errorf("фильтр pending вернул не тот набор: %+v", pendingOnly)
	}
}

func TestFindOpenChatForUser(t *testing.T) {
	s := NewMemoryStore()

	got, err := s.FindOpenChatForUser("u1")
	if err != nil {
		t.Fatalf("FindOpenChatForUser: %v", err)
	}
	if got != nil {
		t.Fatalf("для пользователя без чатов должен вернуться nil")
	}

	chat := mustCreateChat(t, s, "u1", "alice")

	got, err = s.FindOpenChatForUser("u1")
	if err != nil {
		t.Fatalf("FindOpenChatForUser: %v", err)
	}
	if got == nil || got.ID != chat.ID {
		t.Fatalf("ожидался чат %s, получено %+v", chat.ID, got)
	}

	// Закрытый чат не считается открытым.
	s.mu.Lock()
	s.chats[chat.ID].Status = models.ChatStatusClosed
	s.mu.Unlock()

	got, err = s.FindOpenChatForUser("u1")
	if err != nil {
		t.Fatalf("FindOpenChatForUser: %v", err)
	}
	if got != nil {
		t.Fatalf("закрытый чат вернулся как открытый")
	}
}

func TestCountUnreadActiveSumsPerChat(t *testing.T) {
	s := NewMemoryStore()

	a := mustCreateChat(t, s, "u1", "alice")
	mustAppend(t, s, a.ID, models.FromUser, "1")
	mustAppend(t, s, a.ID, models.FromUser, "2")

	b := mustCreateChat(t, s, "u2", "bob")
	mustAppend(t, s, b.ID, models.FromUser, "3")
	mustAppend(t, s, b.ID, models.FromAdmin, "ответ")

	// Pending-чат не участвует в сумме.
	c := mustCreateChat(t, s, "u3", "carol")
	_ = c

	total, err := s.CountUnreadActive(models.FromUser)
	if err != nil {
		t.Fatalf("CountUnreadActive: %v", err)
	}

	want := 0
	for _, chat := range []models.Chat{a, b} {
		n, err := s.CountUnread(chat.ID, models.FromUser)
		if err != nil {
			t.Fatalf("CountUnread(%s): %v", chat.ID, err)
		}
		want += n
	}
	if total != want {
		t.Errorf("CountUnreadActive = %d, сумма по чатам = %d", total, want)
	}
	if total != 3 {
		t.Errorf("ожидалось 3 непрочитанных, получено %d", total)
	}
}

func TestMessagesNotFoundChat(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.AppendMessage("нет-такого", models.FromUser, "x"); err != ErrChatNotFound {
		t.Errorf("AppendMessage в несуществующий чат: ожидалась ErrChatNotFound, получено %v", err)
	}
	if _, err := s.FindChatByID("нет-такого"); err != ErrChatNotFound {
		t.Errorf("FindChatByID: ожидалась ErrChatNotFound, получено %v", err)
	}
	if err := s.TouchChat("нет-такого"); err != ErrChatNotFound {
		t.Errorf("TouchChat: ожидалась ErrChatNotFound, получено %v", err)
	}
}
