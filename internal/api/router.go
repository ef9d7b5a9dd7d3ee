package api

import (
	"github.com/go-chi/chi/v5"

	"SupportChat/internal/gateway"
	"SupportChat/internal/service"
)

// Dependencies содержит зависимости для обработчиков API.
type Dependencies struct {
	SecretKey string
	Service   *service.ChatService
	Hub       *gateway.Hub
}

// SetupRoutes настраивает все маршруты чат-API. Все маршруты требуют
// bearer-токен; админские операции проверяются по флагу роли внутри
// обработчиков, а не отдельным guard-ом на маршруте.
func SetupRoutes(r *chi.Mux, deps Dependencies) {
	h := NewHandlers(deps.Service, deps.Hub)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.SecretKey))

		r.Get("/chat/user", h.GetUserChat)
		r.Get("/chat/list", h.ListChats)
		r.Get("/chat/unread-count", h.GetUnreadCount)
		r.Post("/chat/send", h.SendMessage)
		r.Get("/chat/{chatId}", h.GetChat)
		r.Post("/chat/{chatId}/read", h.MarkRead)
	})
}
