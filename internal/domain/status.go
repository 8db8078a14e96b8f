package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Every status has an entry; terminal statuses map to an empty set.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func AllStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, s)
	}
	return st, nil
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) IsTerminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// CheckTransition returns ErrInvalidTransition when to is not reachable from
// from in one step.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); ps {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return ps, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrValidation, s)
}

// PaymentAfterCancel is the payment status an owner cancellation leaves
// behind: captured payments are refunded, anything else fails.
func PaymentAfterCancel(ps PaymentStatus) PaymentStatus {
	if ps == PaymentPaid {
		return PaymentRefunded
	}
	return PaymentFailed
}

const PaymentMethodCOD = "cod"

// IsCashOnDelivery accepts the common spellings clients send.
func IsCashOnDelivery(method string) bool {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cod", "cash_on_delivery", "cash-on-delivery", "cash on delivery":
		return true
	}
	return false
}

// InitialStatus is confirmed for cash on delivery, pending otherwise.
func InitialStatus(paymentMethod string) Status {
	if IsCashOnDelivery(paymentMethod) {
		return StatusConfirmed
	}
	return StatusPending
}
