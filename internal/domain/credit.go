package domain

import "time"

// LedgerEntryType enumerates credit ledger entry categories.
type LedgerEntryType string

const (
	LedgerEntryPurchase      LedgerEntryType = "purchase"
	LedgerEntryUsage         LedgerEntryType = "usage"
	LedgerEntryRefund        LedgerEntryType = "refund"
	LedgerEntryBonus         LedgerEntryType = "bonus"
	LedgerEntryReferralBonus LedgerEntryType = "referral_bonus"
)

// ValidLedgerEntryType reports whether t is a known entry type.
func ValidLedgerEntryType(t LedgerEntryType) bool {
	switch t {
	case LedgerEntryPurchase, LedgerEntryUsage, LedgerEntryRefund,
		LedgerEntryBonus, LedgerEntryReferralBonus:
		return true
	}
	return false
}

// CreditLedgerEntry is one immutable row in a user's credit history.
// Amount is signed: debits are negative, credits positive.
type CreditLedgerEntry struct {
	ID           string
	UserID       string
	GenerationID string
	EntryType    LedgerEntryType
	Amount       int
	BalanceAfter int
	Description  string
	CreatedAt    time.Time
}

// User owns a credit balance. Account identity lives upstream; only
// the balance and its history are managed here.
type User struct {
	ID        string
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
