package models

import (
	"database/sql"
	"time"
)

// Wallet is the model for the 'wallets' table. One row per user, created at
// onboarding. Balance is in minor currency units (kobo) and is only ever
// mutated through the ledger primitives in the handlers package.
type Wallet struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// WalletTransaction is the model for the append-only 'wallet_transactions'
// table. Exactly one row exists per balance change, carrying the same signed
// amount the balance moved by. Reference is set only for external credits
// (provider webhooks) and has a UNIQUE index, which is what makes duplicate
// webhook deliveries a no-op.
type WalletTransaction struct {
	ID        int64          `json:"id" db:"id"`
	WalletID  int64          `json:"walletId" db:"wallet_id"`
	UserID    int64          `json:"userId" db:"user_id"`
	Amount    int64          `json:"amount" db:"amount"` // signed, minor units
	Label     string         `json:"label" db:"label"`
	Icon      string         `json:"icon" db:"icon"`
	Reference sql.NullString `json:"reference,omitempty" db:"reference"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
