package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyCash   Currency = "CASH"
	CurrencyCredit Currency = "CREDIT"
	CurrencyPoints Currency = "POINTS"
)

type TxDirection string

const (
	DirectionCredit TxDirection = "CREDIT"
	DirectionDebit  TxDirection = "DEBIT"
)

type (
	Wallet struct {
		ID          uint            `gorm:"primaryKey" json:"id"`
		PrincipalID uint            `gorm:"column:principal_id;not null;uniqueIndex:idx_wallet_principal_currency,priority:1" json:"principal_id"`
		Currency    Currency        `gorm:"column:currency;type:varchar(10);not null;uniqueIndex:idx_wallet_principal_currency,priority:2" json:"currency"`
		Balance     decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null" json:"balance"`
		Frozen      bool            `gorm:"column:frozen;not null" json:"frozen"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	// WalletTransaction is unique per (wallet, direction, reference) so a
	// replayed credit or debit is detected instead of applied twice.
	WalletTransaction struct {
		ID           uint            `gorm:"primaryKey" json:"id"`
		WalletID     uint            `gorm:"column:wallet_id;not null;uniqueIndex:idx_wallet_tx_reference,priority:1" json:"wallet_id"`
		Direction    TxDirection     `gorm:"column:direction;type:varchar(10);not null;uniqueIndex:idx_wallet_tx_reference,priority:2" json:"direction"`
		Reference    string          `gorm:"column:reference;type:varchar(128);not null;uniqueIndex:idx_wallet_tx_reference,priority:3" json:"reference"`
		Amount       decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
		BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:numeric(20,2);not null" json:"balance_after"`
		Description  string          `gorm:"column:description" json:"description"`
		CreatedAt    time.Time       `json:"created_at"`
	}
)

func (Wallet) TableName() string {
	return "wallets"
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
