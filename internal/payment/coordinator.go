// Package payment orchestrates the payment-gated submission workflow:
// order creation against an opaque provider, synchronous or
// redirect-based confirmation, and the atomic creation of the resulting
// question plus its opening message. Nothing here is fatal; every
// failure resolves to a state the user can retry from with the draft
// intact.
package payment

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"astroconnect/backend/internal/models"
	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/storage"
)

// DefaultAmount is the fixed charge in the provider's minor currency
// unit (1000 = 10.00 in a two-decimal currency).
const DefaultAmount int64 = 1000

// Draft is the submission before any side effect: question text and
// special number as entered, plus the identity to attribute it to.
// Empty identity fields are generated at confirmation time.
type Draft struct {
	UserID        string
	UserName      string
	QuestionText  string
	SpecialNumber int
}

// RedirectOrder is handed back by BeginRedirect: where to send the user
// and the identifiers the return URL will carry.
type RedirectOrder struct {
	OrderID    string
	QuestionID string
	URL        string
}

// Coordinator drives submission attempts through the state machine.
type Coordinator struct {
	provider Provider
	store    storage.ConversationStore
	broker   *notify.Broker
	amount   int64

	now func() time.Time
}

// NewCoordinator wires the workflow. broker may be nil (no signals).
// amount must be positive; pass DefaultAmount for the stock charge.
func NewCoordinator(provider Provider, store storage.ConversationStore, broker *notify.Broker, amount int64) (*Coordinator, error) {
	if provider == nil {
		return nil, errors.New("payment: provider must not be nil")
	}
	if store == nil {
		return nil, errors.New("payment: store must not be nil")
	}
	if amount <= 0 {
		return nil, errors.New("payment: charge amount must be a positive number of minor units")
	}
	return &Coordinator{
		provider: provider,
		store:    store,
		broker:   broker,
		amount:   amount,
		now:      time.Now,
	}, nil
}

// SubmitSync runs the whole attempt in-process: create order, confirm,
// create the conversation. Returns the new question id on success.
func (c *Coordinator) SubmitSync(ctx context.Context, draft Draft, details ConfirmDetails) (string, error) {
	if err := validateDraft(draft); err != nil {
		return "", err
	}

	sm := newSubmissionMachine(StateDraft)
	fire(sm, triggerCommit)

	orderID, err := c.createOrder(ctx)
	if err != nil {
		fire(sm, triggerOrderErrored)
		fire(sm, triggerReset)
		return "", err
	}
	fire(sm, triggerOrderCreated)

	status, err := c.provider.Confirm(ctx, orderID, details)
	if err != nil || status != StatusSucceeded {
		fire(sm, triggerConfirmFailed)
		fire(sm, triggerReset)
		if err != nil {
			return "", newError(CodeConfirmationFailed, "confirm_error", err)
		}
		return "", newError(CodeConfirmationFailed, "status_"+string(status), nil)
	}
	fire(sm, triggerConfirmSucceeded)

	// The question id is minted only now, at confirmed success.
	questionID := models.NewID("q_")
	if err := c.createConversation(questionID, draft); err != nil {
		return "", err
	}
	log.Printf("INFO: Payment confirmed for order %s, question %s created.", orderID, questionID)
	return questionID, nil
}

// BeginRedirect starts a bank-redirect attempt. The question id is
// minted here and staged together with the draft before the user leaves,
// so the return handler can finish the conversation without it.
func (c *Coordinator) BeginRedirect(ctx context.Context, draft Draft) (RedirectOrder, error) {
	if err := validateDraft(draft); err != nil {
		return RedirectOrder{}, err
	}

	sm := newSubmissionMachine(StateDraft)
	fire(sm, triggerCommit)

	orderID, err := c.createOrder(ctx)
	if err != nil {
		fire(sm, triggerOrderErrored)
		fire(sm, triggerReset)
		return RedirectOrder{}, err
	}
	fire(sm, triggerOrderCreated)

	questionID := models.NewID("q_")
	staged := models.StagedSubmission{
		QuestionID:    questionID,
		QuestionText:  draft.QuestionText,
		SpecialNumber: draft.SpecialNumber,
	}
	if err := c.store.StageSubmission(staged); err != nil {
		// Do not hand out a redirect the return path cannot finish.
		c.store.ClearStagedSubmission()
		fire(sm, triggerConfirmFailed)
		fire(sm, triggerReset)
		return RedirectOrder{}, newError(CodeInternal, "stage_submission", err)
	}

	return RedirectOrder{
		OrderID:    orderID,
		QuestionID: questionID,
		URL:        c.provider.RedirectURL(orderID, questionID),
	}, nil
}

// CompleteFromRedirect finishes an attempt when the provider sends the
// user back. The staged record is consumed (and thereby erased) before
// anything else, so re-running this handler on a page revisit finds
// nothing staged and reports ErrNothingStaged instead of creating a
// duplicate conversation.
func (c *Coordinator) CompleteFromRedirect(ctx context.Context, orderID string, details ConfirmDetails) (string, error) {
	staged, ok := c.store.TakeStagedSubmission()
	if !ok {
		return "", ErrNothingStaged
	}
	if strings.TrimSpace(staged.QuestionText) == "" {
		// A staged record that lost its text cannot become a
		// conversation. This is a data problem, not a benign revisit, so
		// it does not match ErrNothingStaged.
		return "", newError(CodeNothingStaged, "incomplete_staged_data", nil)
	}

	sm := newSubmissionMachine(StateAwaitingConfirmation)

	status, err := c.provider.Confirm(ctx, orderID, details)
	if err != nil || status != StatusSucceeded {
		fire(sm, triggerConfirmFailed)
		fire(sm, triggerReset)
		if err != nil {
			return "", newError(CodeConfirmationFailed, "confirm_error", err)
		}
		return "", newError(CodeConfirmationFailed, "status_"+string(status), nil)
	}
	fire(sm, triggerConfirmSucceeded)

	draft := Draft{
		QuestionText:  staged.QuestionText,
		SpecialNumber: staged.SpecialNumber,
	}
	if err := c.createConversation(staged.QuestionID, draft); err != nil {
		return "", err
	}
	log.Printf("INFO: Redirect payment confirmed for order %s, question %s created.", orderID, staged.QuestionID)
	return staged.QuestionID, nil
}

// Abandon records that the user closed the payment UI before finishing.
// Staged redirect data is cleared so a later unrelated attempt cannot
// consume it. The returned error carries the user-facing outcome; the
// draft itself is preserved by the caller.
func (c *Coordinator) Abandon() error {
	c.store.ClearStagedSubmission()

	sm := newSubmissionMachine(StateAwaitingConfirmation)
	fire(sm, triggerAbandoned)
	fire(sm, triggerReset)

	return newError(CodeAbandoned, "payment_not_completed", nil)
}

func (c *Coordinator) createOrder(ctx context.Context) (string, error) {
	orderID, err := c.provider.CreateOrder(ctx, c.amount)
	if err != nil {
		return "", newError(CodeOrderFailed, "create_order", err)
	}
	if orderID == "" {
		return "", newError(CodeOrderFailed, "empty_order_id", nil)
	}
	return orderID, nil
}

// createConversation commits the question/opening-message pair and
// signals the astrologer scope.
func (c *Coordinator) createConversation(questionID string, draft Draft) error {
	userID := draft.UserID
	if userID == "" {
		userID = models.NewID("user_")
	}
	userName := draft.UserName
	if userName == "" {
		userName = "User " + shortID(userID)
	}

	now := c.now()
	question := models.Question{
		ID:            questionID,
		UserID:        userID,
		UserName:      userName,
		QuestionText:  draft.QuestionText,
		SpecialNumber: draft.SpecialNumber,
		CreatedAt:     now,
		Status:        models.StatusPending,
	}
	opening := models.ChatMessage{
		ID:         models.NewID("msg_"),
		QuestionID: questionID,
		Sender:     models.RoleUser,
		Text:       draft.QuestionText,
		CreatedAt:  now,
	}

	if err := c.store.CreateConversation(question, opening); err != nil {
		return newError(CodeInternal, "persist_conversation", err)
	}
	if c.broker != nil {
		c.broker.Signal(notify.AstrologerScope)
	}
	return nil
}

func validateDraft(d Draft) error {
	if strings.TrimSpace(d.QuestionText) == "" {
		return newError(CodeInvalidInput, "empty_question_text", nil)
	}
	if d.SpecialNumber < models.MinSpecialNumber || d.SpecialNumber > models.MaxSpecialNumber {
		return newError(CodeInvalidInput, "special_number_out_of_range", nil)
	}
	return nil
}

func shortID(userID string) string {
	s := strings.TrimPrefix(userID, "user_")
	if len(s) > 4 {
		s = s[:4]
	}
	return s
}
