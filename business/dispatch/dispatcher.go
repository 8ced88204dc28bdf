package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"promoHub/domain"
)

var ErrUnknownRewardType = errors.New("unknown reward type")

const defaultBonusExpiry = 24 * time.Hour

type (
	// WalletLedger credits are idempotent per reference: replaying a
	// reference returns the balance without crediting twice.
	WalletLedger interface {
		Credit(ctx context.Context, principalID uint, currency domain.Currency, amount decimal.Decimal, reference, description string) (decimal.Decimal, error)
	}

	TicketIssuer interface {
		IssueTicket(ctx context.Context, principalID, poolID uint, reason string, count int) ([]string, error)
	}

	BonusGranter interface {
		Grant(ctx context.Context, grant *domain.BonusGrant) error
	}

	// Claim identifies who receives a reward and why.
	Claim struct {
		PrincipalID uint
		PoolID      uint
		UnitID      uint
		AttemptID   uint
		Reference   string
		Label       string
	}

	AwardResult struct {
		Type           domain.RewardType `json:"type"`
		Value          decimal.Decimal   `json:"value"`
		Currency       domain.Currency   `json:"currency,omitempty"`
		NewBalance     *decimal.Decimal  `json:"new_balance,omitempty"`
		TicketIDs      []string          `json:"ticket_ids,omitempty"`
		BonusGrantID   *uint             `json:"bonus_grant_id,omitempty"`
		BonusExpiresAt *time.Time        `json:"bonus_expires_at,omitempty"`
		Message        string            `json:"message"`
	}

	Dispatcher struct {
		wallet  WalletLedger
		tickets TicketIssuer
		bonuses BonusGranter
		now     func() time.Time
		// bonusExpiry applies to bonus units without their own expiry.
		bonusExpiry time.Duration
	}

	Option func(*Dispatcher)
)

// WithClock sets the clock bonus grant expiries are computed from.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithBonusExpiry(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.bonusExpiry = d
		}
	}
}

func NewDispatcher(wallet WalletLedger, tickets TicketIssuer, bonuses BonusGranter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		wallet:      wallet,
		tickets:     tickets,
		bonuses:     bonuses,
		now:         time.Now,
		bonusExpiry: defaultBonusExpiry,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch performs the side effect of unit for claim. It runs inside the
// caller's transaction; any error must abort it.
func (d *Dispatcher) Dispatch(ctx context.Context, claim Claim, unit domain.RewardUnit) (AwardResult, error) {
	if err := ctx.Err(); err != nil {
		return AwardResult{}, err
	}

	r, err := RewardFromUnit(unit)
	if err != nil {
		return AwardResult{}, err
	}

	return r.Accept(&visit{ctx: ctx, claim: claim, d: d})
}

// visit binds one dispatch call to the Visitor interface.
type visit struct {
	ctx   context.Context
	claim Claim
	d     *Dispatcher
}

var _ Visitor = (*visit)(nil)

func (v *visit) credit(kind domain.RewardType, currency domain.Currency, amount decimal.Decimal) (AwardResult, error) {
	desc := fmt.Sprintf("prize %s from pool %d", v.claim.Label, v.claim.PoolID)
	balance, err := v.d.wallet.Credit(v.ctx, v.claim.PrincipalID, currency, amount, v.claim.Reference, desc)
	if err != nil {
		return AwardResult{}, fmt.Errorf("failed to credit %s wallet: %w", currency, err)
	}

	return AwardResult{
		Type:       kind,
		Value:      amount,
		Currency:   currency,
		NewBalance: &balance,
		Message:    fmt.Sprintf("%s %s credited", amount.StringFixed(2), currency),
	}, nil
}

func (v *visit) VisitCash(r Cash) (AwardResult, error) {
	return v.credit(domain.RewardCash, domain.CurrencyCash, r.Amount)
}

func (v *visit) VisitCredit(r Credit) (AwardResult, error) {
	return v.credit(domain.RewardCredit, domain.CurrencyCredit, r.Amount)
}

func (v *visit) VisitPoints(r Points) (AwardResult, error) {
	return v.credit(domain.RewardPoints, domain.CurrencyPoints, r.Amount)
}

func (v *visit) VisitFreeTicket(r FreeTicket) (AwardResult, error) {
	poolID := v.claim.PoolID
	if r.PoolID != nil {
		poolID = *r.PoolID
	}

	reason := fmt.Sprintf("prize:%s", v.claim.Reference)
	ids, err := v.d.tickets.IssueTicket(v.ctx, v.claim.PrincipalID, poolID, reason, r.Count)
	if err != nil {
		return AwardResult{}, fmt.Errorf("failed to issue tickets: %w", err)
	}

	return AwardResult{
		Type:      domain.RewardFreeTicket,
		Value:     decimal.NewFromInt(int64(len(ids))),
		TicketIDs: ids,
		Message:   fmt.Sprintf("%d free ticket(s) issued", len(ids)),
	}, nil
}

func (v *visit) VisitBonusAttempt(r BonusAttempt) (AwardResult, error) {
	expiry := v.d.bonusExpiry
	if r.ExpiryHours > 0 {
		expiry = time.Duration(r.ExpiryHours) * time.Hour
	}

	var source *uint
	if v.claim.AttemptID != 0 {
		id := v.claim.AttemptID
		source = &id
	}

	grant := &domain.BonusGrant{
		PrincipalID:     v.claim.PrincipalID,
		PoolID:          v.claim.PoolID,
		SourceAttemptID: source,
		ExpiresAt:       v.d.now().UTC().Add(expiry),
	}
	if err := v.d.bonuses.Grant(v.ctx, grant); err != nil {
		return AwardResult{}, fmt.Errorf("failed to grant bonus attempt: %w", err)
	}

	return AwardResult{
		Type:           domain.RewardBonusAttempt,
		Value:          decimal.NewFromInt(1),
		BonusGrantID:   &grant.ID,
		BonusExpiresAt: &grant.ExpiresAt,
		Message:        "bonus attempt granted",
	}, nil
}

func (v *visit) VisitNoWin(NoWin) (AwardResult, error) {
	return AwardResult{
		Type:    domain.RewardNoWin,
		Value:   decimal.Zero,
		Message: "no win this time",
	}, nil
}
