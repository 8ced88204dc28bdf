package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"promoHub/business/dispatch"
	"promoHub/business/eligibility"
	"promoHub/business/history"
	"promoHub/business/selector"
	"promoHub/domain"
	"promoHub/pkg/logger"
	"promoHub/pkg/metrics"
)

type (
	AttemptRequest struct {
		// ContextID is the ticket id of an instant-win attempt.
		ContextID string
		Metadata  map[string]any
	}

	Rejection struct {
		Reason          eligibility.Reason
		NextAvailableAt *time.Time
	}

	Result struct {
		Allowed   bool
		Rejection *Rejection
		Outcome   domain.AttemptOutcome
		AttemptID uint
		Reference string
		Unit      *domain.RewardUnit
		Award     dispatch.AwardResult
		// RemainingAttempts after this one; eligibility.Unlimited for pools
		// without a per-user quota.
		RemainingAttempts int
	}

	WheelListing struct {
		Pool  domain.Pool     `json:"pool"`
		Units []selector.Odds `json:"units"`
	}

	Deps struct {
		Tx          TxManager
		Pools       PoolRepository
		Principals  PrincipalRepository
		Units       UnitRepository
		Attempts    AttemptLog
		Tickets     Tickets
		Grants      BonusGrants
		Eligibility Eligibility
		Selector    Selector
		Dispatcher  Dispatcher
		Locker      PoolLocker
		Broadcaster history.Broadcaster
	}

	AllocationService struct {
		Deps
		txTimeout time.Duration
		now       func() time.Time
	}

	Option func(*AllocationService)
)

const defaultTxTimeout = 5 * time.Second

func WithTxTimeout(d time.Duration) Option {
	return func(s *AllocationService) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *AllocationService) { s.now = now }
}

func NewAllocationService(deps Deps, opts ...Option) *AllocationService {
	if deps.Locker == nil {
		deps.Locker = NoopLocker{}
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = history.NopBroadcaster{}
	}
	s := &AllocationService{
		Deps:      deps,
		txTimeout: defaultTxTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AllocationService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, TraceIDFromContext)
}

// Attempt runs one allocation for principalID on poolID. Ineligible attempts
// return a Result carrying a Rejection and a nil error; nothing is written
// except the audit row. Any error means nothing was committed.
func (s *AllocationService) Attempt(ctx context.Context, principalID, poolID uint, req AttemptRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	defer func() { metrics.AllocationLatency.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	unlock, err := s.Locker.Lock(ctx, poolID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		metrics.TransientFailures.Inc()
		return Result{}, fmt.Errorf("%w: pool lock: %w", ErrTransient, err)
	}
	defer unlock()

	var (
		res       Result
		rejection *Rejection
		label     string
	)

	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, rejection, label, err = s.attempt(ctx, principalID, poolID, req)
		if err == nil && rejection != nil {
			return errRejected
		}
		return err
	})

	poolLabel := fmt.Sprint(poolID)

	switch {
	case errors.Is(err, errRejected):
		metrics.AllocationAttempts.WithLabelValues(poolLabel, string(domain.OutcomeRejected)).Inc()
		s.recordRejection(ctx, principalID, poolID, req, rejection)
		return Result{Allowed: false, Rejection: rejection}, nil

	case errors.Is(err, ErrStockExhausted):
		metrics.StockExhausted.WithLabelValues(poolLabel).Inc()
		s.log(ctx).Error("Pool has no allocable stock", "pool_id", poolID, "principal_id", principalID)
		return Result{}, err

	case errors.Is(err, context.Canceled), err != nil && errors.Is(ctx.Err(), context.Canceled):
		s.log(ctx).Info("Allocation cancelled by caller", "pool_id", poolID, "principal_id", principalID)
		if !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", context.Canceled, err)
		}
		return Result{}, err

	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		metrics.TransientFailures.Inc()
		s.log(ctx).Warn("Allocation aborted", "pool_id", poolID, "principal_id", principalID, "error", err)
		if !errors.Is(err, ErrTransient) {
			err = fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return Result{}, err

	case err != nil:
		return Result{}, err
	}

	metrics.AllocationAttempts.WithLabelValues(poolLabel, string(res.Outcome)).Inc()
	if res.Outcome == domain.OutcomeAllocated && res.Award.Type != domain.RewardNoWin {
		metrics.RewardsDispatched.WithLabelValues(string(res.Award.Type)).Inc()
		s.Broadcaster.Publish(history.WinEvent{
			PoolID:      poolID,
			PrincipalID: principalID,
			AttemptID:   res.AttemptID,
			Label:       label,
			Type:        res.Award.Type,
			Value:       res.Award.Value.StringFixed(2),
			At:          s.now().UTC(),
		})
	}

	s.log(ctx).Info("Allocation committed",
		"pool_id", poolID,
		"principal_id", principalID,
		"attempt_id", res.AttemptID,
		"outcome", res.Outcome,
		"reward_type", res.Award.Type,
	)

	return res, nil
}

// attempt is the body of the allocation transaction.
func (s *AllocationService) attempt(ctx context.Context, principalID, poolID uint, req AttemptRequest) (Result, *Rejection, string, error) {
	pool, err := s.Pools.LockByID(ctx, poolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Result{}, nil, "", ErrPoolNotFound
		}
		return Result{}, nil, "", fmt.Errorf("failed to lock pool: %w", err)
	}

	principal, err := s.Principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Result{}, nil, "", ErrPrincipalNotFound
		}
		return Result{}, nil, "", fmt.Errorf("failed to load principal: %w", err)
	}

	decision, err := s.Eligibility.Evaluate(ctx, principal, pool)
	if err != nil {
		return Result{}, nil, "", fmt.Errorf("failed to evaluate eligibility: %w", err)
	}
	if !decision.Allowed {
		return Result{}, &Rejection{Reason: decision.Reason, NextAvailableAt: decision.NextAvailableAt}, "", nil
	}

	units, err := s.Units.LockByPool(ctx, pool.ID)
	if err != nil {
		return Result{}, nil, "", fmt.Errorf("failed to load reward units: %w", err)
	}

	now := s.now().UTC()
	meta := mergeContext(
		callerMetadata(req.Metadata),
		buildBaseContext(now, req.ContextID, TraceIDFromContext(ctx)),
		map[string]any{"pool_kind": string(pool.Kind)},
	)

	var chosen pick
	if pool.Kind == domain.PoolKindInstantWin {
		var rej *Rejection
		chosen, rej, err = s.instantWin(ctx, principal, pool, units, req.ContextID, now)
		if rej != nil {
			return Result{}, rej, "", nil
		}
	} else {
		chosen, err = s.draw(ctx, units)
	}
	if err != nil {
		return Result{}, nil, "", err
	}

	attempt := &domain.AllocationAttempt{
		PrincipalID: principal.ID,
		PoolID:      pool.ID,
		Outcome:     chosen.outcome,
		RewardType:  domain.RewardNoWin,
		Magnitude:   decimal.Zero,
		Reason:      chosen.reason,
		Reference:   uuid.NewString(),
		CreatedAt:   now,
	}
	if chosen.unit != nil {
		id := chosen.unit.ID
		attempt.UnitID = &id
		meta["unit_label"] = chosen.unit.Label
		if chosen.outcome == domain.OutcomeAllocated {
			attempt.RewardType = chosen.unit.Type
			attempt.Magnitude = chosen.unit.Magnitude
		}
	}
	if chosen.alternative {
		meta["alternative"] = true
	}
	if decision.UsesBonusGrant != nil {
		meta["bonus_grant_id"] = *decision.UsesBonusGrant
	}
	attempt.Metadata = toJSONMap(meta)

	if err := s.Attempts.Append(ctx, attempt); err != nil {
		return Result{}, nil, "", fmt.Errorf("failed to record attempt: %w", err)
	}

	if decision.UsesBonusGrant != nil {
		ok, err := s.Grants.MarkUsed(ctx, *decision.UsesBonusGrant, attempt.ID, now)
		if err != nil {
			return Result{}, nil, "", err
		}
		if !ok {
			return Result{}, nil, "", fmt.Errorf("%w: bonus grant %d already used", ErrTransient, *decision.UsesBonusGrant)
		}
	}

	award := dispatch.AwardResult{Type: domain.RewardNoWin, Value: decimal.Zero, Message: chosen.reason}
	if chosen.outcome != domain.OutcomeConflict {
		claim := dispatch.Claim{
			PrincipalID: principal.ID,
			PoolID:      pool.ID,
			AttemptID:   attempt.ID,
			Reference:   attempt.Reference,
		}
		unit := domain.RewardUnit{Type: domain.RewardNoWin}
		if chosen.unit != nil {
			unit = *chosen.unit
			claim.UnitID = unit.ID
			claim.Label = unit.Label
		}
		award, err = s.Dispatcher.Dispatch(ctx, claim, unit)
		if err != nil {
			return Result{}, nil, "", fmt.Errorf("failed to dispatch reward: %w", err)
		}
	}

	remaining := decision.Remaining
	if remaining != eligibility.Unlimited && remaining > 0 {
		remaining--
	}

	var (
		won   *domain.RewardUnit
		label string
	)
	if chosen.unit != nil && chosen.outcome == domain.OutcomeAllocated {
		won = chosen.unit
		label = won.Label
	}

	return Result{
		Allowed:           true,
		Outcome:           attempt.Outcome,
		AttemptID:         attempt.ID,
		Reference:         attempt.Reference,
		Unit:              won,
		Award:             award,
		RemainingAttempts: remaining,
	}, nil, label, nil
}

type pick struct {
	unit        *domain.RewardUnit
	outcome     domain.AttemptOutcome
	reason      string
	alternative bool
}

// draw selects and consumes one unit, falling back to the alternative when
// the drawn unit turns out to be exhausted.
func (s *AllocationService) draw(ctx context.Context, units []domain.RewardUnit) (pick, error) {
	unit := s.Selector.Select(units)
	alternative := false
	if unit == nil {
		unit = s.Selector.SelectAlternative(units)
		alternative = true
	}
	if unit == nil {
		return pick{}, ErrStockExhausted
	}

	ok, err := s.Units.Consume(ctx, unit.ID)
	if err != nil {
		return pick{}, err
	}

	if !ok {
		rest := without(units, unit.ID)
		unit = s.Selector.SelectAlternative(rest)
		if unit == nil {
			return pick{}, ErrStockExhausted
		}
		alternative = true

		ok, err = s.Units.Consume(ctx, unit.ID)
		if err != nil {
			return pick{}, err
		}
		if !ok {
			return pick{}, ErrStockExhausted
		}
	}

	if alternative {
		metrics.AlternativeSelections.Inc()
	}

	u := *unit
	u.Consumed++
	return pick{unit: &u, outcome: domain.OutcomeAllocated, alternative: alternative}, nil
}

// instantWin redeems the ticket named by contextID. A lost claim race is a
// Conflict outcome, not an error.
func (s *AllocationService) instantWin(ctx context.Context, principal domain.Principal, pool domain.Pool, units []domain.RewardUnit, contextID string, now time.Time) (pick, *Rejection, error) {
	if contextID == "" {
		return pick{}, nil, fmt.Errorf("%w: ticket id is required", ErrInvalidContext)
	}

	ticket, err := s.Tickets.GetTicket(ctx, contextID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return pick{}, nil, fmt.Errorf("%w: unknown ticket", ErrInvalidContext)
		}
		return pick{}, nil, fmt.Errorf("failed to load ticket: %w", err)
	}

	if ticket.PoolID != pool.ID || (ticket.OwnerID != nil && *ticket.OwnerID != principal.ID) {
		return pick{}, &Rejection{Reason: eligibility.ReasonTicketNotOwned}, nil
	}

	var mapped *domain.RewardUnit
	for i := range units {
		if units[i].TicketNumber != nil && *units[i].TicketNumber == ticket.Number {
			mapped = &units[i]
			break
		}
	}

	claimed, err := s.Tickets.ClaimTicket(ctx, ticket.ID, principal.ID)
	if err != nil {
		return pick{}, nil, err
	}
	if !claimed {
		return pick{unit: mapped, outcome: domain.OutcomeConflict, reason: "ticket already claimed"}, nil, nil
	}

	if mapped != nil {
		ok, err := s.Units.Claim(ctx, mapped.ID, principal.ID, now)
		if err != nil {
			return pick{}, nil, err
		}
		if !ok {
			return pick{unit: mapped, outcome: domain.OutcomeConflict, reason: "prize already claimed"}, nil, nil
		}
		u := *mapped
		u.Consumed++
		u.ClaimedBy = &principal.ID
		return pick{unit: &u, outcome: domain.OutcomeAllocated}, nil, nil
	}

	var unmapped []domain.RewardUnit
	for _, u := range units {
		if u.TicketNumber == nil {
			unmapped = append(unmapped, u)
		}
	}
	if len(unmapped) == 0 {
		return pick{outcome: domain.OutcomeAllocated}, nil, nil
	}

	p, err := s.draw(ctx, unmapped)
	return p, nil, err
}

func (s *AllocationService) recordRejection(ctx context.Context, principalID, poolID uint, req AttemptRequest, rej *Rejection) {
	if rej == nil {
		return
	}

	// The allocation context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	now := s.now().UTC()
	attempt := &domain.AllocationAttempt{
		PrincipalID: principalID,
		PoolID:      poolID,
		RewardType:  domain.RewardNoWin,
		Magnitude:   decimal.Zero,
		Outcome:     domain.OutcomeRejected,
		Reason:      string(rej.Reason),
		Reference:   uuid.NewString(),
		CreatedAt:   now,
		Metadata:    toJSONMap(mergeContext(callerMetadata(req.Metadata), buildBaseContext(now, req.ContextID, TraceIDFromContext(ctx)))),
	}
	if err := s.Attempts.Append(ctx, attempt); err != nil {
		s.log(ctx).Warn("Failed to record rejected attempt", "pool_id", poolID, "principal_id", principalID, "error", err)
	}
}

// Check is the advisory eligibility decision shown before an attempt.
func (s *AllocationService) Check(ctx context.Context, principalID, poolID uint) (eligibility.Decision, error) {
	if err := ctx.Err(); err != nil {
		return eligibility.Decision{}, err
	}

	pool, err := s.Pools.FindByID(ctx, poolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return eligibility.Decision{}, ErrPoolNotFound
		}
		return eligibility.Decision{}, err
	}

	principal, err := s.Principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return eligibility.Decision{}, ErrPrincipalNotFound
		}
		return eligibility.Decision{}, err
	}

	return s.Eligibility.Evaluate(ctx, principal, pool)
}

// ListWheel returns the pool with the current odds and stock of every unit.
func (s *AllocationService) ListWheel(ctx context.Context, poolID uint) (WheelListing, error) {
	if err := ctx.Err(); err != nil {
		return WheelListing{}, err
	}

	pool, err := s.Pools.FindByID(ctx, poolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return WheelListing{}, ErrPoolNotFound
		}
		return WheelListing{}, err
	}

	units, err := s.Units.ListByPool(ctx, poolID)
	if err != nil {
		return WheelListing{}, err
	}

	return WheelListing{Pool: pool, Units: selector.OddsTable(units)}, nil
}

func without(units []domain.RewardUnit, id uint) []domain.RewardUnit {
	out := make([]domain.RewardUnit, 0, len(units))
	for _, u := range units {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}
