package gateway

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"SupportChat/internal/auth"
	"SupportChat/internal/models"
	"SupportChat/internal/service"
)

// AdminNotifier — крючок для Bot Relay: уведомление о новом сообщении
// пользователя. Вызывается fire-and-forget; ошибка только логируется и
// никогда не роняет операцию сокета.
type AdminNotifier interface {
	NotifyNewUserMessage(chat models.Chat, msg models.Message) error
}

// Hub держит комнаты живых соединений: приватную user:<id> на каждого
// пользователя и общую admins для всех админских соединений.
type Hub struct {
	service *service.ChatService
	secret  string

	mu        sync.RWMutex
	userRooms map[string]map[*Client]bool
	admins    map[*Client]bool

	notifierMu sync.RWMutex
	notifier   AdminNotifier

	upgrader websocket.Upgrader
}

func NewHub(svc *service.ChatService, secret string) *Hub {
	return &Hub{
		service:   svc,
		secret:    secret,
		userRooms: make(map[string]map[*Client]bool),
		admins:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			// Браузерные клиенты приходят с других origin'ов сайта,
			// доступ ограничен токеном рукопожатия.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetNotifier подключает Bot Relay. Вызывается один раз при старте.
func (h *Hub) SetNotifier(n AdminNotifier) {
	h.notifierMu.Lock()
	h.notifier = n
	h.notifierMu.Unlock()
}

// ServeWS — HTTP-обработчик рукопожатия. Токен берется из query-параметра
// token или заголовка Authorization. Соединение с невалидным токеном
// получает событие error и закрывается, не попадая ни в одну комнату.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ServeWS: ошибка апгрейда соединения: %v", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := auth.VerifyToken(token, h.secret)
	if err != nil {
		log.Printf("ServeWS: отказ в аутентификации: %v", err)
		writeDirect(conn, EventError, ErrorPayload{Message: "аутентификация не пройдена"})
		conn.Close()
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		claims: claims,
	}
	h.register(client)
	log.Printf("Подключение %s (admin=%v) установлено.", claims.UserID, claims.IsAdmin)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.claims.IsAdmin {
		h.admins[c] = true
		return
	}
	room, ok := h.userRooms[c.claims.UserID]
	if !ok {
		room = make(map[*Client]bool)
		h.userRooms[c.claims.UserID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.claims.IsAdmin {
		if _, ok := h.admins[c]; ok {
			delete(h.admins, c)
			close(c.send)
		}
		return
	}
	if room, ok := h.userRooms[c.claims.UserID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.userRooms, c.claims.UserID)
		}
	}
}

// SendToUser рассылает событие всем соединениям приватной комнаты
// пользователя. Безопасно вызывать из любой горутины (в т.ч. из Bot Relay).
func (h *Hub) SendToUser(userID, event string, payload any) {
	frame, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("SendToUser: ошибка сериализации события %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userRooms[userID] {
		select {
		case c.send <- frame:
		default:
		}
	}
}

// SendToAdmins рассылает событие в общую комнату админов.
func (h *Hub) SendToAdmins(event string, payload any) {
	frame, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("SendToAdmins: ошибка сериализации события %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.admins {
		select {
		case c.send <- frame:
		default:
		}
	}
}

// BroadcastChatsList отправляет админам свежий список незакрытых чатов.
func (h *Hub) BroadcastChatsList() {
	chats, err := h.service.ListAll("")
	if err != nil {
		log.Printf("BroadcastChatsList: ошибка получения списка чатов: %v", err)
		return
	}
	h.SendToAdmins(EventChatsList, chats)
}

// NotifyUserMessage — общий для сокета и REST путь побочных эффектов
// пользовательского сообщения: рассылка админам, обновление их списка
// чатов и fire-and-forget уведомление в Bot Relay.
func (h *Hub) NotifyUserMessage(chat models.Chat, msg models.Message) {
	h.SendToAdmins(EventNewMessage, msg)
	h.BroadcastChatsList()

	h.notifierMu.RLock()
	notifier := h.notifier
	h.notifierMu.RUnlock()
	if notifier == nil {
		return
	}
	go func() {
		if err := notifier.NotifyNewUserMessage(chat, msg); err != nil {
			log.Printf("Уведомление бота о сообщении в чате %s не доставлено: %v", chat.ID, err)
		}
	}()
}

// handleEvent — диспетчер входящего протокола. Ошибки обработчиков
// уходят событием error только соединению-источнику и никогда не
// пересекают границы соединений.
func (h *Hub) handleEvent(c *Client, env Envelope) {
	switch env.Event {
	case EventGetChat:
		h.handleGetChat(c)
	case EventSendMessage:
		h.handleSendMessage(c, env)
	case EventMarkRead:
		h.handleMarkRead(c, env)
	case EventGetUnreadCount:
		h.handleGetUnreadCount(c)
	default:
		c.sendError("неизвестное событие: " + env.Event)
	}
}

func (h *Hub) handleGetChat(c *Client) {
	if c.claims.IsAdmin {
		chats, err := h.service.ListAll("")
		if err != nil {
			c.sendError("не удалось загрузить список чатов")
			return
		}
		c.sendEvent(EventChatsList, chats)
		return
	}

	chat, messages, err := h.service.ChatForUser(c.claims.UserID)
	if err != nil {
		c.sendError("не удалось загрузить чат")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.sendEvent(EventChatData, ChatDataPayload{Chat: chat, Messages: messages})
}

func (h *Hub) handleSendMessage(c *Client, env Envelope) {
	var payload SendMessagePayload
	if err := parsePayload(env.Payload, &payload); err != nil {
		c.sendError("некорректный формат события send-message")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		c.sendError("текст сообщения не может быть пустым")
		return
	}

	chatID := payload.ChatID
	from := models.FromUser
	if c.claims.IsAdmin {
		from = models.FromAdmin
		if chatID == "" {
			c.sendError("chatId обязателен для ответа администратора")
			return
		}
	} else if chatID == "" {
		chat, err := h.service.GetOrCreateChat(c.claims.UserID, c.claims.Username)
		if err != nil {
			c.sendError("не удалось создать чат")
			return
		}
		chatID = chat.ID
	}

	msg, err := h.service.Send(chatID, from, payload.Text)
	if err != nil {
		c.sendError(userFacing(err))
		return
	}
	chat, err := h.service.Chat(chatID)
	if err != nil {
		// Чат только что принял сообщение, его исчезновение — аномалия.
		log.Printf("handleSendMessage: чат %s не найден после записи: %v", chatID, err)
		return
	}
	c.sendEvent(EventNewMessage, msg)

	if c.claims.IsAdmin {
		h.SendToUser(chat.UserID, EventNewMessage, msg)
		// Ответ админа означает, что он прочитал сообщения пользователя.
		if err := h.service.MarkRead(chatID, models.FromUser); err != nil {
			log.Printf("handleSendMessage: ошибка пометки прочитанного в чате %s: %v", chatID, err)
		}
		return
	}
	h.NotifyUserMessage(chat, msg)
}

func (h *Hub) handleMarkRead(c *Client, env Envelope) {
	var payload MarkReadPayload
	if err := parsePayload(env.Payload, &payload); err != nil || payload.ChatID == "" {
		c.sendError("некорректный формат события mark-read")
		return
	}

	// Читающая сторона помечает прочитанными сообщения другой стороны.
	other := models.FromAdmin
	if c.claims.IsAdmin {
		other = models.FromUser
	}
	if err := h.service.MarkRead(payload.ChatID, other); err != nil {
		c.sendError(userFacing(err))
		return
	}

	readNote := MessagesReadPayload{ChatID: payload.ChatID, From: other}
	if c.claims.IsAdmin {
		chat, err := h.service.Chat(payload.ChatID)
		if err != nil {
			return
		}
		h.SendToUser(chat.UserID, EventMessagesRead, readNote)
		return
	}
	h.SendToAdmins(EventMessagesRead, readNote)
}

func (h *Hub) handleGetUnreadCount(c *Client) {
	var count int
	var err error
	if c.claims.IsAdmin {
		count, err = h.service.UnreadForAllAdmins()
	} else {
		var chat *models.Chat
		chat, _, err = h.service.ChatForUser(c.claims.UserID)
		if err == nil && chat != nil {
			count, err = h.service.UnreadFor(chat.ID, models.FromAdmin)
		}
	}
	if err != nil {
		c.sendError("не удалось посчитать непрочитанные")
		return
	}
	c.sendEvent(EventUnreadCount, UnreadCountPayload{Count: count})
}

// userFacing переводит ошибки сервиса в строку для события error.
func userFacing(err error) string {
	switch {
	case errors.Is(err, service.ErrChatNotFound):
		return "чат не найден"
	case errors.Is(err, service.ErrEmptyMessage):
		return "текст сообщения не может быть пустым"
	default:
		return "внутренняя ошибка, попробуйте еще раз"
	}
}
