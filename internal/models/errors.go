package models

import "errors"

// Domain error sentinels. Handlers translate these into HTTP statuses and
// user-facing reason strings; core functions never write HTTP responses.
var (
	ErrInvalidTransition      = errors.New("invalid order transition")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidAmount          = errors.New("amount must be a positive integer")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrExpiredOrMismatchedOTP = errors.New("invalid or expired OTP")
	ErrOTPNotVerified         = errors.New("delivery OTP has not been verified")
	ErrNotDisputable          = errors.New("only delivered orders can be disputed")
	ErrAlreadyDisputed        = errors.New("order has already been disputed")
	ErrDisputeWindowClosed    = errors.New("dispute window closed")
	ErrDuplicateReference     = errors.New("payment reference already processed")
)
