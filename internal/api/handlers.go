package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"SupportChat/internal/gateway"
	"SupportChat/internal/models"
	"SupportChat/internal/service"
)

// jsonResponse - структура для ответов об ошибках API
type jsonResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChatDataResponse - ответ с чатом и историей сообщений
type ChatDataResponse struct {
	Chat     *models.Chat     `json:"chat"`
	Messages []models.Message `json:"messages"`
}

// SendMessageRequest - тело запроса на отправку сообщения
type SendMessageRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("writeJSON: ошибка кодирования ответа: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, jsonResponse{Status: "error", Message: message})
}

// Handlers держит зависимости REST-обработчиков чата.
type Handlers struct {
	service *service.ChatService
	hub     *gateway.Hub
}

func NewHandlers(svc *service.ChatService, hub *gateway.Hub) *Handlers {
	return &Handlers{service: svc, hub: hub}
}

// GetUserChat возвращает чат текущего пользователя с историей,
// либо {chat:null, messages:[]} если чата еще нет.
func (h *Handlers) GetUserChat(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chat, messages, err := h.service.ChatForUser(claims.UserID)
	if err != nil {
		log.Printf("GetUserChat: ошибка для пользователя %s: %v", claims.UserID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load chat")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, ChatDataResponse{Chat: chat, Messages: messages})
}

// ListChats возвращает список чатов для админа. Фильтр по статусу
// передается через ?status=; пустой фильтр исключает закрытые чаты.
func (h *Handlers) ListChats(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r)
	if !ok || !claims.IsAdmin {
		writeJSONError(w, http.StatusForbidden, "Admin access required")
		return
	}

	chats, err := h.service.ListAll(r.URL.Query().Get("status"))
	if err != nil {
		log.Printf("ListChats: ошибка получения списка: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	writeJSON(w, http.StatusOK, chats)
}

// GetChat возвращает один чат с историей по его ID.
func (h *Handlers) GetChat(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chatID := chi.URLParam(r, "chatId")
	chat, messages, err := h.service.History(chatID)
	if err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			writeJSONError(w, http.StatusNotFound, "Chat not found")
			return
		}
		log.Printf("GetChat: ошибка загрузки чата %s: %v", chatID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load chat")
		return
	}

	// Пользователь может смотреть только свой чат.
	if !claims.IsAdmin && chat.UserID != claims.UserID {
		writeJSONError(w, http.StatusForbidden, "Access denied")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, ChatDataResponse{Chat: &chat, Messages: messages})
}

// SendMessage отправляет сообщение от имени авторизованного пользователя.
// Для пользователя без chatId чат создается лениво. Доставка в комнаты
// и уведомление бота повторяют событие send-message из realtime-канала.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	from := models.FromUser
	if claims.IsAdmin {
		from = models.FromAdmin
	}

	chatID := req.ChatID
	if chatID == "" {
		if claims.IsAdmin {
			writeJSONError(w, http.StatusBadRequest, "chatId is required")
			return
		}
		chat, err := h.service.GetOrCreateChat(claims.UserID, claims.Username)
		if err != nil {
			log.Printf("SendMessage: ошибка создания чата для %s: %v", claims.UserID, err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to create chat")
			return
		}
		chatID = chat.ID
	}

	msg, err := h.service.Send(chatID, from, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			writeJSONError(w, http.StatusBadRequest, "Message text is empty")
		case errors.Is(err, service.ErrChatNotFound):
			writeJSONError(w, http.StatusNotFound, "Chat not found")
		default:
			log.Printf("SendMessage: ошибка отправки в чат %s: %v", chatID, err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to send message")
		}
		return
	}

	chat, err := h.service.Chat(chatID)
	if err != nil {
		log.Printf("SendMessage: ошибка чтения чата %s после отправки: %v", chatID, err)
		writeJSON(w, http.StatusOK, msg)
		return
	}

	if claims.IsAdmin {
		h.hub.SendToUser(chat.UserID, gateway.EventNewMessage, msg)
		if err := h.service.MarkRead(chatID, models.FromUser); err != nil {
			log.Printf("SendMessage: ошибка пометки прочитанным в чате %s: %v", chatID, err)
		}
	} else {
		h.hub.NotifyUserMessage(chat, msg)
	}

	writeJSON(w, http.StatusOK, msg)
}

// MarkRead помечает прочитанными сообщения противоположной стороны.
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chatID := chi.URLParam(r, "chatId")

	// Читающая сторона гасит непрочитанные сообщения другой стороны.
	from := models.FromAdmin
	if claims.IsAdmin {
		from = models.FromUser
	}

	if err := h.service.MarkRead(chatID, from); err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			writeJSONError(w, http.StatusNotFound, "Chat not found")
			return
		}
		log.Printf("MarkRead: ошибка в чате %s: %v", chatID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to mark messages read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetUnreadCount возвращает число непрочитанных сообщений.
// Для админа считаются сообщения пользователей по всем активным чатам,
// для пользователя - сообщения админов в его чате.
func (h *Handlers) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var count int
	if claims.IsAdmin {
		n, err := h.service.UnreadForAllAdmins()
		if err != nil {
			log.Printf("GetUnreadCount: ошибка подсчета для админа: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to count unread")
			return
		}
		count = n
	} else {
		chat, _, err := h.service.ChatForUser(claims.UserID)
		if err != nil {
			log.Printf("GetUnreadCount: ошибка подсчета для %s: %v", claims.UserID, err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to count unread")
			return
		}
		if chat != nil {
			n, err := h.service.UnreadFor(chat.ID, models.FromAdmin)
			if err != nil {
				log.Printf("GetUnreadCount: ошибка подсчета для чата %s: %v", chat.ID, err)
				writeJSONError(w, http.StatusInternalServerError, "Failed to count unread")
				return
			}
			count = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
