package eligibility

import (
	"context"
	"fmt"
	"time"

	"promoHub/domain"
)

// Reason is the closed set of rejection reasons.
type Reason string

const (
	ReasonQuotaExceeded  Reason = "quota exceeded"
	ReasonCooldownActive Reason = "cooldown active"
	ReasonTierTooLow     Reason = "tier too low"
	ReasonPoolInactive   Reason = "pool inactive"
	ReasonGlobalLimit    Reason = "global limit reached"
	ReasonTicketNotOwned Reason = "ticket not owned"
)

// Unlimited is the Remaining value of pools without a per-user quota.
const Unlimited = -1

type (
	Decision struct {
		Allowed         bool       `json:"allowed"`
		Reason          Reason     `json:"reason,omitempty"`
		Remaining       int        `json:"remaining"`
		NextAvailableAt *time.Time `json:"next_available_at,omitempty"`
		// UsesBonusGrant is set when the quota is spent and the attempt
		// rides on an unused bonus grant.
		UsesBonusGrant *uint `json:"uses_bonus_grant,omitempty"`
	}

	// AttemptLog counts only attempts that consume quota.
	AttemptLog interface {
		CountForPrincipal(ctx context.Context, principalID, poolID uint, since time.Time) (int64, error)
		CountForPool(ctx context.Context, poolID uint, since time.Time) (int64, error)
		LastForPrincipal(ctx context.Context, principalID, poolID uint) (*domain.AllocationAttempt, error)
	}

	BonusGrants interface {
		ActiveGrants(ctx context.Context, principalID, poolID uint, now time.Time) ([]domain.BonusGrant, error)
	}

	Evaluator struct {
		attempts AttemptLog
		grants   BonusGrants
		now      func() time.Time
		loc      *time.Location
	}

	Option func(*Evaluator)
)

func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithLocation sets the timezone calendar windows are aligned in.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEvaluator builds an evaluator. grants may be nil when bonus attempts
// are not in use.
func NewEvaluator(attempts AttemptLog, grants BonusGrants, opts ...Option) *Evaluator {
	e := &Evaluator{
		attempts: attempts,
		grants:   grants,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Now() time.Time {
	return e.now().UTC()
}

// Evaluate decides whether principal may attempt pool now. It reads through
// whatever transaction ctx carries, so the coordinator can re-run it under
// the pool lock.
func (e *Evaluator) Evaluate(ctx context.Context, principal domain.Principal, pool domain.Pool) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	now := e.Now()

	period, err := ResolvePeriod(pool.PeriodKey)
	if err != nil {
		return Decision{}, fmt.Errorf("pool %d: %w", pool.ID, err)
	}

	if !pool.Active || !pool.OpenAt(now) {
		return reject(ReasonPoolInactive, 0, nil), nil
	}

	if principal.Tier < pool.MinTier {
		return reject(ReasonTierTooLow, 0, nil), nil
	}

	since := WindowStart(period, now, pool.CooldownHours, e.loc)

	if pool.GlobalLimit != nil {
		total, err := e.attempts.CountForPool(ctx, pool.ID, since)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to count pool attempts: %w", err)
		}
		if total >= int64(*pool.GlobalLimit) {
			return reject(ReasonGlobalLimit, 0, NextBoundary(period, now, e.loc)), nil
		}
	}

	var grants []domain.BonusGrant
	if e.grants != nil {
		grants, err = e.grants.ActiveGrants(ctx, principal.ID, pool.ID, now)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to load bonus grants: %w", err)
		}
	}

	if pool.PerUserLimit <= 0 {
		return Decision{Allowed: true, Remaining: Unlimited}, nil
	}

	count, err := e.attempts.CountForPrincipal(ctx, principal.ID, pool.ID, since)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count attempts: %w", err)
	}

	left := pool.PerUserLimit - int(count)
	if left < 0 {
		left = 0
	}
	remaining := left + len(grants)

	if left > 0 {
		return Decision{Allowed: true, Remaining: remaining}, nil
	}

	if len(grants) > 0 {
		id := grants[0].ID
		return Decision{Allowed: true, Remaining: remaining, UsesBonusGrant: &id}, nil
	}

	if period == domain.PeriodCooldown {
		next, err := e.cooldownEnds(ctx, principal.ID, pool)
		if err != nil {
			return Decision{}, err
		}
		return reject(ReasonCooldownActive, 0, next), nil
	}

	return reject(ReasonQuotaExceeded, 0, NextBoundary(period, now, e.loc)), nil
}

func (e *Evaluator) cooldownEnds(ctx context.Context, principalID uint, pool domain.Pool) (*time.Time, error) {
	last, err := e.attempts.LastForPrincipal(ctx, principalID, pool.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last attempt: %w", err)
	}
	if last == nil {
		return nil, nil
	}
	next := last.CreatedAt.UTC().Add(time.Duration(pool.CooldownHours) * time.Hour)
	return &next, nil
}

func reject(reason Reason, remaining int, next *time.Time) Decision {
	return Decision{
		Allowed:         false,
		Reason:          reason,
		Remaining:       remaining,
		NextAvailableAt: next,
	}
}
