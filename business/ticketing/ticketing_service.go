package ticketing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promoHub/domain"
)

var (
	ErrTicketNotFound = fmt.Errorf("ticket %w", domain.ErrNotFound)
	ErrInvalidCount   = errors.New("ticket count must be positive")
)

// maxBatch caps one issue call so a misconfigured prize cannot flood a pool.
const maxBatch = 1000

type (
	Repository interface {
		// NextNumbers reserves count sequential numbers in poolID and returns
		// the first one.
		NextNumbers(ctx context.Context, poolID uint, count int) (int64, error)
		CreateBatch(ctx context.Context, tickets []domain.Ticket) error
		FindByID(ctx context.Context, id string) (domain.Ticket, error)
		Claim(ctx context.Context, id string, principalID uint, at time.Time) (bool, error)
		ListByOwner(ctx context.Context, ownerID uint, limit int) ([]domain.Ticket, error)
	}

	TxManager interface {
		WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}

	TicketingService struct {
		repo Repository
		tx   TxManager
		now  func() time.Time
	}
)

func NewTicketingService(repo Repository, tx TxManager) *TicketingService {
	return &TicketingService{repo: repo, tx: tx, now: time.Now}
}

// IssueTicket creates count tickets owned by principalID in poolID.
func (s *TicketingService) IssueTicket(ctx context.Context, principalID, poolID uint, reason string, count int) ([]string, error) {
	owner := principalID
	return s.issue(ctx, &owner, poolID, reason, count)
}

// IssueOpenCodes creates tickets without an owner; the first principal to
// redeem one claims it.
func (s *TicketingService) IssueOpenCodes(ctx context.Context, poolID uint, reason string, count int) ([]string, error) {
	return s.issue(ctx, nil, poolID, reason, count)
}

func (s *TicketingService) issue(ctx context.Context, owner *uint, poolID uint, reason string, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 || count > maxBatch {
		return nil, ErrInvalidCount
	}

	var ids []string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		first, err := s.repo.NextNumbers(ctx, poolID, count)
		if err != nil {
			return fmt.Errorf("failed to reserve ticket numbers: %w", err)
		}

		tickets := make([]domain.Ticket, count)
		for i := range tickets {
			tickets[i] = domain.Ticket{
				PoolID:  poolID,
				Number:  first + int64(i),
				OwnerID: owner,
				Reason:  reason,
			}
		}
		if err := s.repo.CreateBatch(ctx, tickets); err != nil {
			return fmt.Errorf("failed to create tickets: %w", err)
		}

		ids = make([]string, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// ClaimTicket marks the ticket claimed by principalID. It returns false when
// someone already claimed it.
func (s *TicketingService) ClaimTicket(ctx context.Context, ticketID string, principalID uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ok, err := s.repo.Claim(ctx, ticketID, principalID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim ticket: %w", err)
	}
	return ok, nil
}

func (s *TicketingService) GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return domain.Ticket{}, err
	}

	t, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Ticket{}, ErrTicketNotFound
		}
		return domain.Ticket{}, fmt.Errorf("failed to load ticket: %w", err)
	}
	return t, nil
}

func (s *TicketingService) ListTickets(ctx context.Context, ownerID uint, limit int) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByOwner(ctx, ownerID, limit)
}
