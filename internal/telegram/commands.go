package telegram

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	qrcode "github.com/skip2/go-qrcode"

	"SupportChat/internal/models"
	"SupportChat/internal/service"
)

const helpText = `🛠 Поддержка сайта. Доступные команды:

/chats — все открытые чаты
/unread — чаты с непрочитанными сообщениями
/history <id> — история чата
/reply <id> <текст> — ответить в чат
/export — выгрузка чатов в Excel
/qr — QR-код страницы поддержки`

// handleUpdate обрабатывает одно обновление платформы. Командная
// поверхность доступна единственному настроенному администратору;
// остальным отвечаем отказом.
func (r *Relay) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message

	if r.cfg.AdminChatID == 0 || msg.Chat.ID != r.cfg.AdminChatID {
		log.Printf("Отклонена команда от постороннего chat_id %d.", msg.Chat.ID)
		r.send(msg.Chat.ID, "⛔ Доступ запрещен.")
		return
	}

	if !msg.IsCommand() {
		r.send(msg.Chat.ID, helpText)
		return
	}

	switch msg.Command() {
	case "start", "help":
		r.send(msg.Chat.ID, helpText)
	case "chats":
		r.cmdChats(false)
	case "unread":
		r.cmdChats(true)
	case "history":
		r.cmdHistory(msg.CommandArguments())
	case "reply":
		r.cmdReply(msg.CommandArguments())
	case "export":
		r.cmdExport()
	case "qr":
		r.cmdQR()
	default:
		r.send(msg.Chat.ID, "Неизвестная команда. "+helpText)
	}
}

// send доставляет текст администратору; ошибки только логируются.
func (r *Relay) send(chatID int64, text string) {
	r.mu.Lock()
	api := r.api
	r.mu.Unlock()
	if api == nil {
		return
	}
	if _, err := api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("Ошибка отправки сообщения в Telegram (chat_id %d): %v", chatID, err)
	}
}

func (r *Relay) sendToAdmin(c tgbotapi.Chattable) {
	r.mu.Lock()
	api := r.api
	r.mu.Unlock()
	if api == nil {
		return
	}
	if _, err := api.Send(c); err != nil {
		log.Printf("Ошибка отправки в Telegram администратору: %v", err)
	}
}

func (r *Relay) cmdChats(onlyUnread bool) {
	chats, err := r.service.ListAll("")
	if err != nil {
		r.send(r.cfg.AdminChatID, "❌ Ошибка загрузки списка чатов.")
		return
	}

	var b strings.Builder
	shown := 0
	for _, chat := range chats {
		unread, errCount := r.service.UnreadFor(chat.ID, models.FromUser)
		if errCount != nil {
			log.Printf("cmdChats: ошибка подсчета непрочитанных чата %s: %v", chat.ID, errCount)
			continue
		}
		if onlyUnread && unread == 0 {
			continue
		}
		shown++
		fmt.Fprintf(&b, "%d. %s [%s] — непрочитанных: %d\n   id: %s\n",
			shown, chatDisplayName(chat), chat.Status, unread, chat.ID)
	}

	if shown == 0 {
		if onlyUnread {
			r.send(r.cfg.AdminChatID, "✅ Непрочитанных сообщений нет.")
		} else {
			r.send(r.cfg.AdminChatID, "💬 Открытых чатов пока нет.")
		}
		return
	}
	r.send(r.cfg.AdminChatID, "💬 Чаты поддержки:\n\n"+b.String()+"\nОтвет: /reply <id> <текст>")
}

func (r *Relay) cmdHistory(args string) {
	chatID := strings.TrimSpace(args)
	if chatID == "" {
		r.send(r.cfg.AdminChatID, "Использование: /history <id чата>")
		return
	}

	chat, messages, err := r.service.History(chatID)
	if err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			r.send(r.cfg.AdminChatID, "❌ Чат не найден.")
		} else {
			r.send(r.cfg.AdminChatID, "❌ Ошибка загрузки истории чата.")
		}
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💬 Чат с %s [%s]:\n\n", chatDisplayName(chat), chat.Status)
	for _, m := range messages {
		side := "🛠"
		if m.From == models.FromUser {
			side = "👤"
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", side, m.Timestamp.Format("02.01 15:04"), m.Text)
	}
	if len(messages) == 0 {
		b.WriteString("(сообщений нет)\n")
	}
	r.send(r.cfg.AdminChatID, b.String())
}

func (r *Relay) cmdReply(args string) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		r.send(r.cfg.AdminChatID, "Использование: /reply <id чата> <текст ответа>")
		return
	}

	if _, err := r.Reply(parts[0], parts[1]); err != nil {
		switch {
		case errors.Is(err, service.ErrChatNotFound):
			r.send(r.cfg.AdminChatID, "❌ Чат не найден.")
		case errors.Is(err, service.ErrEmptyMessage):
			r.send(r.cfg.AdminChatID, "❌ Текст ответа пуст.")
		default:
			r.send(r.cfg.AdminChatID, "❌ Ошибка отправки ответа.")
		}
		return
	}
	r.send(r.cfg.AdminChatID, "✅ Ответ отправлен.")
}

func (r *Relay) cmdExport() {
	buf, err := r.buildChatsReport()
	if err != nil {
		log.Printf("cmdExport: ошибка формирования Excel отчета: %v", err)
		r.send(r.cfg.AdminChatID, "❌ Ошибка формирования Excel отчета.")
		return
	}

	doc := tgbotapi.NewDocument(r.cfg.AdminChatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("support_chats_%s.xlsx", time.Now().Format("2006-01-02")),
		Bytes: buf,
	})
	doc.Caption = "📊 Выгрузка чатов поддержки"
	r.sendToAdmin(doc)
}

func (r *Relay) cmdQR() {
	if r.cfg.SiteURL == "" {
		r.send(r.cfg.AdminChatID, "❌ SITE_URL не настроен, QR-код недоступен.")
		return
	}

	// qrcode.Medium — уровень коррекции ошибок, 256 — размер в пикселях.
	qrBytes, err := qrcode.Encode(r.cfg.SiteURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("cmdQR: ошибка кодирования QR-кода для '%s': %v", r.cfg.SiteURL, err)
		r.send(r.cfg.AdminChatID, "❌ Ошибка генерации QR-кода.")
		return
	}

	photo := tgbotapi.NewPhoto(r.cfg.AdminChatID, tgbotapi.FileBytes{
		Name:  "support_qr.png",
		Bytes: qrBytes,
	})
	photo.Caption = "🔲 QR-код страницы поддержки: " + r.cfg.SiteURL
	r.sendToAdmin(photo)
}
