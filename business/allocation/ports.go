package allocation

import (
	"context"
	"time"

	"promoHub/business/dispatch"
	"promoHub/business/eligibility"
	"promoHub/domain"
)

type (
	TxManager interface {
		WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}

	PoolRepository interface {
		FindByID(ctx context.Context, id uint) (domain.Pool, error)
		LockByID(ctx context.Context, id uint) (domain.Pool, error)
	}

	PrincipalRepository interface {
		FindByID(ctx context.Context, id uint) (domain.Principal, error)
	}

	UnitRepository interface {
		ListByPool(ctx context.Context, poolID uint) ([]domain.RewardUnit, error)
		LockByPool(ctx context.Context, poolID uint) ([]domain.RewardUnit, error)
		Consume(ctx context.Context, unitID uint) (bool, error)
		Claim(ctx context.Context, unitID, principalID uint, at time.Time) (bool, error)
	}

	AttemptLog interface {
		Append(ctx context.Context, attempt *domain.AllocationAttempt) error
	}

	Tickets interface {
		GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error)
		ClaimTicket(ctx context.Context, ticketID string, principalID uint) (bool, error)
	}

	BonusGrants interface {
		MarkUsed(ctx context.Context, grantID, attemptID uint, at time.Time) (bool, error)
	}

	Eligibility interface {
		Evaluate(ctx context.Context, principal domain.Principal, pool domain.Pool) (eligibility.Decision, error)
	}

	Selector interface {
		Select(candidates []domain.RewardUnit) *domain.RewardUnit
		SelectAlternative(candidates []domain.RewardUnit) *domain.RewardUnit
	}

	Dispatcher interface {
		Dispatch(ctx context.Context, claim dispatch.Claim, unit domain.RewardUnit) (dispatch.AwardResult, error)
	}

	// PoolLocker serializes attempts on one pool ahead of the database
	// transaction. The returned func releases the lock.
	PoolLocker interface {
		Lock(ctx context.Context, poolID uint) (func(), error)
	}
)
