package service

import (
	"errors"
	"sync"
	"testing"

	"SupportChat/internal/models"
	"SupportChat/internal/storage"
)

func newTestService() *ChatService {
	return NewChatService(storage.NewMemoryStore())
}

func TestSendRejectsEmptyText(t *testing.T) {
	svc := newTestService()
	chat, err := svc.GetOrCreateChat("u1", "alice")
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Send(chat.ID, models.FromUser, text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q): ожидалась ErrEmptyMessage, получено %v", text, err)
		}
	}

	// Ничего не сохранилось.
	_, messages, err := svc.History(chat.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("после отклоненных отправок в чате %d сообщений", len(messages))
	}
}

func TestSendUnknownChat(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Send("нет-такого", models.FromUser, "привет"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("ожидалась ErrChatNotFound, получено %v", err)
	}
}

func TestSendThenHistoryAppendsLast(t *testing.T) {
	svc := newTestService()
	chat, err := svc.GetOrCreateChat("u1", "alice")
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}

	if _, err := svc.Send(chat.ID, models.FromUser, "первое"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, err := svc.Send(chat.ID, models.FromAdmin, "второе")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, messages, err := svc.History(chat.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("ожидалось 2 сообщения, получено %d", len(messages))
	}
	last := messages[len(messages)-1]
	if last.ID != msg.ID || last.Text != "второе" {
		t.Errorf("последним должно быть только что отправленное сообщение, получено %+v", last)
	}
}

func TestGetOrCreateChatConcurrent(t *testing.T) {
	svc := newTestService()

	const goroutines = 16
	var wg sync.WaitGroup
	ids := make([]string, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat, err := svc.GetOrCreateChat("u1", "alice")
			ids[i], errs[i] = chat.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("горутина %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("горутины получили разные чаты: %s и %s", ids[0], ids[i])
		}
	}

	chats, err := svc.ListAll("")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(chats) != 1 {
		t.Errorf("создано %d чатов, должен быть ровно один", len(chats))
	}
}

func TestChatForUserAbsent(t *testing.T) {
	svc := newTestService()
	chat, messages, err := svc.ChatForUser("u1")
	if err != nil {
		t.Fatalf("ChatForUser: %v", err)
	}
	if chat != nil || messages != nil {
		t.Errorf("для пользователя без чата ожидалось (nil, nil), получено (%+v, %+v)", chat, messages)
	}
}

func TestMarkReadUnknownChat(t *testing.T) {
	svc := newTestService()
	if err := svc.MarkRead("нет-такого", models.FromUser); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("ожидалась ErrChatNotFound, получено %v", err)
	}
}

func TestUnreadForAllAdmins(t *testing.T) {
	svc := newTestService()

	a, err := svc.GetOrCreateChat("u1", "alice")
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	b, err := svc.GetOrCreateChat("u2", "bob")
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}

	for _, text := range []string{"раз", "два"} {
		if _, err := svc.Send(a.ID, models.FromUser, text); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if _, err := svc.Send(b.ID, models.FromUser, "три"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Ответы админа в счетчик не входят.
	if _, err := svc.Send(b.ID, models.FromAdmin, "ответ"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	total, err := svc.UnreadForAllAdmins()
	if err != nil {
		t.Fatalf("UnreadForAllAdmins: %v", err)
	}

	want := 0
	for _, chat := range []models.Chat{a, b} {
		n, err := svc.UnreadFor(chat.ID, models.FromUser)
		if err != nil {
			t.Fatalf("UnreadFor(%s): %v", chat.ID, err)
		}
		want += n
	}
	if total != want || total != 3 {
		t.Errorf("UnreadForAllAdmins = %d, сумма по чатам = %d, ожидалось 3", total, want)
	}

	// После прочтения счетчик обнуляется и остается нулевым.
	if err := svc.MarkRead(a.ID, models.FromUser); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := svc.MarkRead(b.ID, models.FromUser); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	total, err = svc.UnreadForAllAdmins()
	if err != nil {
		t.Fatalf("UnreadForAllAdmins: %v", err)
	}
	if total != 0 {
		t.Errorf("после MarkRead ожидалось 0, получено %d", total)
	}
}
