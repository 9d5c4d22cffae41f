package domain

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid_subscription_transition")
	ErrUnknownEvent      = errors.New("unknown_subscription_event")
)

// EventType is a canonical payment-processor lifecycle event.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventInvoicePaid         EventType = "invoice_paid"
	EventInvoiceFailed       EventType = "invoice_payment_failed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
)

// transitions encodes the lifecycle:
// incomplete/trialing -> active <-> past_due -> unpaid -> canceled (terminal).
// CancelAtPeriodEnd is an orthogonal flag, not a state.
var transitions = map[SubscriptionStatus]map[EventType]SubscriptionStatus{
	StatusIncomplete: {
		EventCheckoutCompleted:   StatusActive,
		EventInvoiceFailed:       StatusIncomplete,
		EventSubscriptionDeleted: StatusCanceled,
	},
	StatusTrialing: {
		EventCheckoutCompleted:   StatusActive,
		EventInvoicePaid:         StatusActive,
		EventInvoiceFailed:       StatusPastDue,
		EventSubscriptionDeleted: StatusCanceled,
	},
	StatusActive: {
		EventCheckoutCompleted:   StatusActive,
		EventInvoicePaid:         StatusActive,
		EventInvoiceFailed:       StatusPastDue,
		EventSubscriptionDeleted: StatusCanceled,
	},
	StatusPastDue: {
		EventInvoicePaid:         StatusActive,
		EventInvoiceFailed:       StatusUnpaid,
		EventSubscriptionDeleted: StatusCanceled,
	},
	StatusUnpaid: {
		EventInvoicePaid:         StatusActive,
		EventSubscriptionDeleted: StatusCanceled,
	},
	StatusCanceled: {},
}

// Transition returns the next status for an event, or ErrInvalidTransition
// when the event is not legal in the current status.
func Transition(current SubscriptionStatus, event EventType) (SubscriptionStatus, error) {
	allowed, ok := transitions[current]
	if !ok {
		return current, ErrInvalidTransition
	}
	next, ok := allowed[event]
	if !ok {
		return current, ErrInvalidTransition
	}
	return next, nil
}

// ValidStatus reports whether a provider-supplied status string is one of ours.
func ValidStatus(status SubscriptionStatus) bool {
	switch status {
	case StatusIncomplete, StatusTrialing, StatusActive, StatusPastDue, StatusUnpaid, StatusCanceled:
		return true
	default:
		return false
	}
}
