package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Status is the provider's verdict on a confirmation attempt.
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusProcessing     Status = "processing"
	StatusRequiresAction Status = "requires_action"
	StatusFailed         Status = "failed"
)

// ConfirmDetails carries opaque provider-specific payment details
// (card token, signature, ...). The workflow never inspects them.
type ConfirmDetails map[string]string

// Provider is the opaque payment boundary. Amounts are positive integers
// in the provider's minor currency unit. Concrete gateways implement
// this; the workflow does not care which one.
type Provider interface {
	// CreateOrder registers a charge intent and returns its order id.
	CreateOrder(ctx context.Context, amount int64) (orderID string, err error)
	// Confirm settles an order and reports the definitive status.
	Confirm(ctx context.Context, orderID string, details ConfirmDetails) (Status, error)
	// RedirectURL is where the user is sent for bank-redirect flows.
	// Confirmation returns later via the return URL carrying the order
	// id and the pre-generated question id.
	RedirectURL(orderID, questionID string) string
}

// MockProvider is the in-tree provider used in development and tests.
// Every order succeeds unless a failure is injected.
type MockProvider struct {
	// CreateErr makes CreateOrder fail.
	CreateErr error
	// EmptyOrderID makes CreateOrder return no identifier without error.
	EmptyOrderID bool
	// ConfirmStatus is returned by Confirm; zero value means succeeded.
	ConfirmStatus Status
	// ConfirmErr makes Confirm fail outright.
	ConfirmErr error

	// BaseURL fronts the fake checkout page in redirect flows.
	BaseURL string

	CreatedOrders  []int64
	ConfirmedOrder string
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) CreateOrder(_ context.Context, amount int64) (string, error) {
	if amount <= 0 {
		return "", errors.New("mock provider: invalid amount")
	}
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.CreatedOrders = append(m.CreatedOrders, amount)
	if m.EmptyOrderID {
		return "", nil
	}
	return "order_mock_" + uuid.NewString(), nil
}

func (m *MockProvider) Confirm(_ context.Context, orderID string, _ ConfirmDetails) (Status, error) {
	if m.ConfirmErr != nil {
		return StatusFailed, m.ConfirmErr
	}
	m.ConfirmedOrder = orderID
	if m.ConfirmStatus == "" {
		return StatusSucceeded, nil
	}
	return m.ConfirmStatus, nil
}

func (m *MockProvider) RedirectURL(orderID, questionID string) string {
	base := m.BaseURL
	if base == "" {
		base = "https://pay.example.com/checkout"
	}
	return fmt.Sprintf("%s?order_id=%s&question_id=%s",
		base, url.QueryEscape(orderID), url.QueryEscape(questionID))
}
