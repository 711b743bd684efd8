package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"astroconnect/backend/internal/models"
	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/oracle"
	"astroconnect/backend/internal/payment"

	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	QuestionText   string                 `json:"question_text"`
	SpecialNumber  int                    `json:"special_number"`
	UserID         string                 `json:"user_id"`
	UserName       string                 `json:"user_name"`
	PaymentDetails payment.ConfirmDetails `json:"payment_details"`
}

func (r submitRequest) draft() payment.Draft {
	return payment.Draft{
		UserID:        r.UserID,
		UserName:      r.UserName,
		QuestionText:  r.QuestionText,
		SpecialNumber: r.SpecialNumber,
	}
}

// SubmitQuestion runs the synchronous payment path and returns the new
// question id for navigation into the chat.
func (h *Handler) SubmitQuestion(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	questionID, err := h.Payments.SubmitSync(c.Request.Context(), req.draft(), req.PaymentDetails)
	if err != nil {
		status, msg := paymentErrorResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"question_id": questionID})
}

// BeginRedirectPayment stages the submission and hands back the
// provider URL to send the user to.
func (h *Handler) BeginRedirectPayment(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := h.Payments.BeginRedirect(c.Request.Context(), req.draft())
	if err != nil {
		status, msg := paymentErrorResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":     order.OrderID,
		"question_id":  order.QuestionID,
		"redirect_url": order.URL,
	})
}

// CompleteRedirectPayment is the return URL target. Revisits after the
// conversation was created report nothing_to_do instead of duplicating.
func (h *Handler) CompleteRedirectPayment(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		orderID = c.Query("payment_intent")
	}
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payment identifier"})
		return
	}

	questionID, err := h.Payments.CompleteFromRedirect(c.Request.Context(), orderID, nil)
	if err != nil {
		if errors.Is(err, payment.ErrNothingStaged) {
			c.JSON(http.StatusOK, gin.H{"status": "nothing_to_do"})
			return
		}
		status, msg := paymentErrorResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed", "question_id": questionID})
}

// AbandonPayment records that the user closed the payment UI.
func (h *Handler) AbandonPayment(c *gin.Context) {
	err := h.Payments.Abandon()
	_, msg := paymentErrorResponse(err)
	c.JSON(http.StatusOK, gin.H{"status": "abandoned", "message": msg})
}

// ListQuestions is the astrologer's inbox, newest first.
func (h *Handler) ListQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": h.Store.ListQuestions()})
}

// GetChat returns a question with its thread and marks it read for the
// requesting role, re-signaling that role's scope so badges drop.
func (h *Handler) GetChat(c *gin.Context) {
	questionID := c.Param("id")
	role := models.Role(c.DefaultQuery("role", string(models.RoleUser)))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	question, ok := h.Store.GetQuestion(questionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return
	}
	messages := h.Store.ListMessages(questionID)

	if role == models.RoleAstrologer {
		h.Store.ClearAstrologerNotification(questionID)
		h.Broker.Signal(notify.AstrologerScope)
	} else {
		h.Store.ClearUserNotification(questionID)
		h.Broker.Signal(notify.UserScope(questionID))
	}
	if refreshed, ok := h.Store.GetQuestion(questionID); ok {
		question = refreshed
	}

	c.JSON(http.StatusOK, gin.H{"question": question, "messages": messages})
}

type sendMessageRequest struct {
	Sender models.Role `json:"sender"`
	Text   string      `json:"text"`
}

// SendMessage appends one turn to the thread and signals the recipient.
func (h *Handler) SendMessage(c *gin.Context) {
	questionID := c.Param("id")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !req.Sender.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown sender role"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text must not be empty"})
		return
	}
	if _, ok := h.Store.GetQuestion(questionID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return
	}

	msg := models.ChatMessage{
		ID:         models.NewID("msg_"),
		QuestionID: questionID,
		Sender:     req.Sender,
		Text:       req.Text,
		CreatedAt:  time.Now(),
	}
	h.Store.AppendMessage(questionID, msg)

	if req.Sender == models.RoleUser {
		h.Broker.Signal(notify.AstrologerScope)
	} else {
		h.Broker.Signal(notify.UserScope(questionID))
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// DraftReply asks the oracle for a reading the astrologer can edit. A
// failure is reported upstream so the UI falls back to manual entry.
func (h *Handler) DraftReply(c *gin.Context) {
	if h.Oracle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI drafting is not configured"})
		return
	}

	question, ok := h.Store.GetQuestion(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return
	}

	reply, err := h.Oracle.GenerateReply(c.Request.Context(), oracle.ReplyRequest{
		QuestionText:  question.QuestionText,
		UserName:      question.UserName,
		SpecialNumber: question.SpecialNumber,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not generate a reply. Please write one manually."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// GetNotificationCount recomputes the unread count for a scope.
func (h *Handler) GetNotificationCount(c *gin.Context) {
	scope := c.Query("scope")
	if scope == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing scope"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope, "count": h.Broker.CountForScope(scope)})
}

// paymentErrorResponse maps workflow errors to an HTTP status and a
// user-facing message. Every mapped failure is resumable from the draft.
func paymentErrorResponse(err error) (int, string) {
	var pErr *payment.Error
	if !errors.As(err, &pErr) {
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
	switch pErr.Code {
	case payment.CodeInvalidInput:
		return http.StatusBadRequest, "Please check your question and special number."
	case payment.CodeOrderFailed:
		return http.StatusPaymentRequired, "Failed to create payment order. Please try again."
	case payment.CodeConfirmationFailed, payment.CodeAbandoned:
		return http.StatusPaymentRequired, "Payment was not completed."
	case payment.CodeNothingStaged:
		return http.StatusGone, "This payment confirmation is no longer in use. Please start a new question."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}
