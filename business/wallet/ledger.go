package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"promoHub/domain"
	"promoHub/pkg/logger"
)

var (
	ErrWalletFrozen        = errors.New("wallet is frozen")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrMissingReference    = errors.New("reference is required")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

type (
	Repository interface {
		// LockOrCreate returns the wallet row locked for the rest of the
		// transaction, creating it with a zero balance when missing.
		LockOrCreate(ctx context.Context, principalID uint, currency domain.Currency) (domain.Wallet, error)
		FindTransaction(ctx context.Context, walletID uint, direction domain.TxDirection, reference string) (*domain.WalletTransaction, error)
		Apply(ctx context.Context, wallet domain.Wallet, tx *domain.WalletTransaction) error
		ListByPrincipal(ctx context.Context, principalID uint) ([]domain.Wallet, error)
	}

	TxManager interface {
		WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}

	Ledger struct {
		repo Repository
		tx   TxManager
	}
)

func NewLedger(repo Repository, tx TxManager) *Ledger {
	return &Ledger{repo: repo, tx: tx}
}

// Credit adds amount to the principal's wallet. A reference that was already
// credited returns the current balance and changes nothing.
func (l *Ledger) Credit(ctx context.Context, principalID uint, currency domain.Currency, amount decimal.Decimal, reference, description string) (decimal.Decimal, error) {
	return l.apply(ctx, principalID, currency, domain.DirectionCredit, amount, reference, description)
}

// Debit removes amount from the principal's wallet, idempotent per reference.
func (l *Ledger) Debit(ctx context.Context, principalID uint, currency domain.Currency, amount decimal.Decimal, reference, description string) (decimal.Decimal, error) {
	return l.apply(ctx, principalID, currency, domain.DirectionDebit, amount, reference, description)
}

func (l *Ledger) Balances(ctx context.Context, principalID uint) ([]domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wallets, err := l.repo.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}

func (l *Ledger) apply(ctx context.Context, principalID uint, currency domain.Currency, direction domain.TxDirection, amount decimal.Decimal, reference, description string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	switch currency {
	case domain.CurrencyCash, domain.CurrencyCredit, domain.CurrencyPoints:
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}

	amount = amount.Round(2)
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if reference == "" {
		return decimal.Zero, ErrMissingReference
	}

	var balance decimal.Decimal
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		w, err := l.repo.LockOrCreate(ctx, principalID, currency)
		if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		if w.Frozen {
			return ErrWalletFrozen
		}

		prior, err := l.repo.FindTransaction(ctx, w.ID, direction, reference)
		if err != nil {
			return fmt.Errorf("failed to look up reference: %w", err)
		}
		if prior != nil {
			logger.Debug("Wallet reference replayed", "wallet_id", w.ID, "reference", reference, "direction", direction)
			balance = w.Balance
			return nil
		}

		next := w.Balance.Add(amount)
		if direction == domain.DirectionDebit {
			next = w.Balance.Sub(amount)
			if next.IsNegative() {
				return ErrInsufficientFunds
			}
		}

		entry := &domain.WalletTransaction{
			WalletID:     w.ID,
			Direction:    direction,
			Reference:    reference,
			Amount:       amount,
			BalanceAfter: next,
			Description:  description,
		}
		if err := l.repo.Apply(ctx, w, entry); err != nil {
			return fmt.Errorf("failed to apply wallet transaction: %w", err)
		}

		balance = next
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}
