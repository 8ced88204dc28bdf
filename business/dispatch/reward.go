package dispatch

import (
	"fmt"

	"github.com/shopspring/decimal"

	"promoHub/domain"
)

// Reward is the closed set of reward kinds a unit can grant. Adding a kind
// means adding a Visitor method, so every handler must be updated.
type Reward interface {
	Kind() domain.RewardType
	Accept(v Visitor) (AwardResult, error)
	reward()
}

type (
	Cash   struct{ Amount decimal.Decimal }
	Credit struct{ Amount decimal.Decimal }
	Points struct{ Amount decimal.Decimal }

	FreeTicket struct {
		Count int
		// PoolID is the pool the tickets enter; nil means the claim's pool.
		PoolID *uint
	}

	BonusAttempt struct{ ExpiryHours int }
	NoWin        struct{}
)

func (Cash) Kind() domain.RewardType         { return domain.RewardCash }
func (Credit) Kind() domain.RewardType       { return domain.RewardCredit }
func (Points) Kind() domain.RewardType       { return domain.RewardPoints }
func (FreeTicket) Kind() domain.RewardType   { return domain.RewardFreeTicket }
func (BonusAttempt) Kind() domain.RewardType { return domain.RewardBonusAttempt }
func (NoWin) Kind() domain.RewardType        { return domain.RewardNoWin }

func (r Cash) Accept(v Visitor) (AwardResult, error)         { return v.VisitCash(r) }
func (r Credit) Accept(v Visitor) (AwardResult, error)       { return v.VisitCredit(r) }
func (r Points) Accept(v Visitor) (AwardResult, error)       { return v.VisitPoints(r) }
func (r FreeTicket) Accept(v Visitor) (AwardResult, error)   { return v.VisitFreeTicket(r) }
func (r BonusAttempt) Accept(v Visitor) (AwardResult, error) { return v.VisitBonusAttempt(r) }
func (r NoWin) Accept(v Visitor) (AwardResult, error)        { return v.VisitNoWin(r) }

func (Cash) reward()         {}
func (Credit) reward()       {}
func (Points) reward()       {}
func (FreeTicket) reward()   {}
func (BonusAttempt) reward() {}
func (NoWin) reward()        {}

type Visitor interface {
	VisitCash(Cash) (AwardResult, error)
	VisitCredit(Credit) (AwardResult, error)
	VisitPoints(Points) (AwardResult, error)
	VisitFreeTicket(FreeTicket) (AwardResult, error)
	VisitBonusAttempt(BonusAttempt) (AwardResult, error)
	VisitNoWin(NoWin) (AwardResult, error)
}

// RewardFromUnit converts the persisted reward type of unit into a Reward.
func RewardFromUnit(unit domain.RewardUnit) (Reward, error) {
	switch unit.Type {
	case domain.RewardCash:
		return Cash{Amount: unit.Magnitude}, nil
	case domain.RewardCredit:
		return Credit{Amount: unit.Magnitude}, nil
	case domain.RewardPoints:
		return Points{Amount: unit.Magnitude}, nil
	case domain.RewardFreeTicket:
		count := int(unit.Magnitude.IntPart())
		if count < 1 {
			count = 1
		}
		return FreeTicket{Count: count, PoolID: unit.TicketPoolID}, nil
	case domain.RewardBonusAttempt:
		return BonusAttempt{ExpiryHours: unit.BonusExpiryHours}, nil
	case domain.RewardNoWin:
		return NoWin{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRewardType, unit.Type)
	}
}
