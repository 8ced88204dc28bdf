package allocation

import (
	"errors"

	"promoHub/domain"
)

var (
	// ErrStockExhausted means neither the draw nor the alternative found a
	// unit with stock. The pool is misconfigured and needs attention.
	ErrStockExhausted = errors.New("no prizes available")

	ErrTransient         = domain.ErrTransient
	ErrPoolNotFound      = errors.New("pool not found")
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidContext is returned when an instant-win attempt names no
	// ticket or an unknown one.
	ErrInvalidContext = errors.New("invalid attempt context")
)

// errRejected unwinds the transaction of an ineligible attempt.
var errRejected = errors.New("attempt rejected")
