package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promoHub/business/wallet"
	"promoHub/domain"
)

type WalletRepository struct {
	DB *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{DB: db}
}

var _ wallet.Repository = (*WalletRepository)(nil)

func (r *WalletRepository) LockOrCreate(ctx context.Context, principalID uint, currency domain.Currency) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, fmt.Errorf("context error: %w", err)
	}

	db := conn(ctx, r.DB)

	fresh := domain.Wallet{PrincipalID: principalID, Currency: currency, Balance: decimal.Zero}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to create wallet: %w", err)
	}

	var w domain.Wallet
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("principal_id = ? AND currency = ?", principalID, currency).
		First(&w).Error
	if err != nil {
		return domain.Wallet{}, notFound(err, "wallet")
	}
	return w, nil
}

func (r *WalletRepository) FindTransaction(ctx context.Context, walletID uint, direction domain.TxDirection, reference string) (*domain.WalletTransaction, error) {
	var tx domain.WalletTransaction
	err := conn(ctx, r.DB).
		Where("wallet_id = ? AND direction = ? AND reference = ?", walletID, direction, reference).
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find wallet transaction: %w", err)
	}
	return &tx, nil
}

// Apply records entry and moves the wallet balance to entry.BalanceAfter.
// The caller must hold the wallet lock.
func (r *WalletRepository) Apply(ctx context.Context, w domain.Wallet, entry *domain.WalletTransaction) error {
	db := conn(ctx, r.DB)

	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	err := db.Model(&domain.Wallet{}).
		Where("id = ?", w.ID).
		Update("balance", entry.BalanceAfter).Error
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}

func (r *WalletRepository) ListByPrincipal(ctx context.Context, principalID uint) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	err := conn(ctx, r.DB).Where("principal_id = ?", principalID).Order("currency").Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}

// SetFrozen freezes or unfreezes a wallet.
func (r *WalletRepository) SetFrozen(ctx context.Context, principalID uint, currency domain.Currency, frozen bool) error {
	err := conn(ctx, r.DB).Model(&domain.Wallet{}).
		Where("principal_id = ? AND currency = ?", principalID, currency).
		Update("frozen", frozen).Error
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}
