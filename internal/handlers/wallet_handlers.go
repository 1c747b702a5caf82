package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

//
// --- Ledger Core Functions ---
//

// Querier is the common interface for QueryRow, implemented by both *sql.DB
// and *sql.Tx. It lets the balance helper run in or out of a transaction.
type Querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// mysqlDuplicateEntry is the server error code for a unique-key violation.
const mysqlDuplicateEntry = 1062

// GetWalletBalance returns a user's current balance in minor units.
func (h *Handlers) GetWalletBalance(q Querier, userID int64) (int64, error) {
	var balance int64
	err := q.QueryRow("SELECT balance FROM wallets WHERE user_id = ?", userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrWalletNotFound
		}
		return 0, err
	}
	return balance, nil
}

// CreditWallet adds funds to a wallet and writes the matching ledger row.
// It MUST be called inside a transaction: the log insert and the balance
// update commit or roll back as one unit. A non-nil reference engages the
// UNIQUE index on wallet_transactions.reference; a second credit with the
// same reference fails with ErrDuplicateReference before any balance change.
func (h *Handlers) CreditWallet(tx *sql.Tx, userID, amount int64, label, icon string, reference *string) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	var walletID int64
	err := tx.QueryRow("SELECT id FROM wallets WHERE user_id = ?", userID).Scan(&walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrWalletNotFound
		}
		return err
	}

	// Ledger row first: if the reference is a duplicate, the unique index
	// rejects it here and the balance is never touched.
	_, err = tx.Exec(`
		INSERT INTO wallet_transactions (wallet_id, user_id, amount, label, icon, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		walletID, userID, amount, label, icon, reference, time.Now())
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return models.ErrDuplicateReference
		}
		return err
	}

	if _, err := tx.Exec("UPDATE wallets SET balance = balance + ? WHERE id = ?", amount, walletID); err != nil {
		return err
	}

	return nil
}

// DebitWallet removes funds from a wallet, failing closed when the balance
// is insufficient. The balance check and mutation are one conditional
// UPDATE, so two concurrent debits can never both drain the same funds:
// the loser sees zero rows affected and gets ErrInsufficientFunds.
func (h *Handlers) DebitWallet(tx *sql.Tx, userID, amount int64, label, icon string) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	var walletID int64
	err := tx.QueryRow("SELECT id FROM wallets WHERE user_id = ?", userID).Scan(&walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrWalletNotFound
		}
		return err
	}

	result, err := tx.Exec("UPDATE wallets SET balance = balance - ? WHERE id = ? AND balance >= ?",
		amount, walletID, amount)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrInsufficientFunds
	}

	_, err = tx.Exec(`
		INSERT INTO wallet_transactions (wallet_id, user_id, amount, label, icon, reference, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)`,
		walletID, userID, -amount, label, icon, time.Now())
	return err
}

//
// --- Wallet HTTP Handlers ---
//

// CreateWallet is the handler for POST /v1/wallet. One wallet per user,
// opened with a zero balance at onboarding.
func (h *Handlers) CreateWallet(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var existing int64
	err := h.DB.QueryRow("SELECT id FROM wallets WHERE user_id = ?", userID).Scan(&existing)
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet already exists"})
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check wallet"})
		return
	}

	if _, err := h.DB.Exec("INSERT INTO wallets (user_id, balance, created_at) VALUES (?, 0, ?)", userID, time.Now()); err != nil {
		// A concurrent create can slip past the check above; the UNIQUE
		// user_id index settles it.
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create wallet"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Wallet created"})
}

// walletResponse is what GET /v1/wallet returns (and what gets cached).
type walletResponse struct {
	Balance      int64                      `json:"balance"`
	Transactions []models.WalletTransaction `json:"transactions"`
}

// GetMyWallet is the handler for GET /v1/wallet. Reads go through a short
// Redis cache that every mutation invalidates.
func (h *Handlers) GetMyWallet(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var cached walletResponse
	if h.cachedWallet(userID, &cached) {
		c.JSON(http.StatusOK, gin.H{"wallet": cached, "cached": true})
		return
	}

	balance, err := h.GetWalletBalance(h.DB, userID)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get wallet balance"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT id, wallet_id, user_id, amount, label, icon, reference, created_at
		FROM wallet_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 20`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}
	defer rows.Close()

	transactions := []models.WalletTransaction{}
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Amount, &t.Label, &t.Icon, &t.Reference, &t.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan transaction"})
			return
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read transactions"})
		return
	}

	resp := walletResponse{Balance: balance, Transactions: transactions}
	h.cacheWallet(userID, resp)
	c.JSON(http.StatusOK, gin.H{"wallet": resp, "cached": false})
}

// TopUpWalletInput defines the JSON for a direct top-up.
type TopUpWalletInput struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// TopUpWallet is the handler for POST /v1/wallet/topup: a direct credit
// without the hosted checkout, kept for dev builds and manual adjustments.
// Real funding goes through InitiatePayment and the provider webhook.
func (h *Handlers) TopUpWallet(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input TopUpWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	tx, err := h.DB.BeginTx(c, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	if err := h.CreditWallet(tx, userID, input.Amount, "Wallet top-up", "💰", nil); err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Top-up failed"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit top-up"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  input.Amount,
		"type":    "topup",
	}).Info("Wallet credited")

	h.invalidateWalletCache(userID)
	h.publishWalletEvent(userID, input.Amount, "Wallet top-up")

	c.JSON(http.StatusOK, gin.H{"message": "Top-up successful", "amount": input.Amount})
}
