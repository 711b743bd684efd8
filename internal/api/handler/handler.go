// Package handler exposes the conversation and submission workflows
// over HTTP. It holds no state of its own; everything authoritative
// lives in the conversation store.
package handler

import (
	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/oracle"
	"astroconnect/backend/internal/payment"
	"astroconnect/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Store    storage.ConversationStore
	Broker   *notify.Broker
	Payments *payment.Coordinator
	Oracle   *oracle.Client // nil disables AI drafts

	jwtSecret []byte
}

func NewHandler(store storage.ConversationStore, broker *notify.Broker, payments *payment.Coordinator, oracleClient *oracle.Client, jwtSecret string) *Handler {
	return &Handler{
		Store:     store,
		Broker:    broker,
		Payments:  payments,
		Oracle:    oracleClient,
		jwtSecret: []byte(jwtSecret),
	}
}

// RegisterRoutes mounts every endpoint on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/anonid", h.GetAnonID)

	r.POST("/questions", h.SubmitQuestion)
	r.POST("/questions/redirect", h.BeginRedirectPayment)
	r.GET("/payment/return", h.CompleteRedirectPayment)
	r.POST("/payment/abandon", h.AbandonPayment)

	r.GET("/questions", h.ListQuestions)
	r.GET("/questions/:id/chat", h.GetChat)
	r.POST("/questions/:id/messages", h.SendMessage)
	r.POST("/questions/:id/draft", h.DraftReply)

	r.GET("/notifications", h.GetNotificationCount)
}
