package models

import "github.com/shopspring/decimal"

type PointsTransactionType string

const (
	PointsTxBinaryCommission PointsTransactionType = "BINARY_COMMISSION"
	PointsTxDirectBonus      PointsTransactionType = "DIRECT_BONUS"
	PointsTxWithdrawal       PointsTransactionType = "WITHDRAWAL"
)

type PointsTransactionStatus string

const (
	PointsTxStatusPending   PointsTransactionStatus = "PENDING"
	PointsTxStatusCompleted PointsTransactionStatus = "COMPLETED"
	PointsTxStatusCancelled PointsTransactionStatus = "CANCELLED"
)

// UserPoints is the cached balance for one member.
// Invariant: AvailablePoints = TotalEarnedPoints − TotalWithdrawnPoints,
// maintained incrementally by PointsService — never recomputed from the log.
type UserPoints struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"uniqueIndex;not null;type:uuid" json:"member_id"`

	AvailablePoints      decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"available_points"`
	TotalEarnedPoints    decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"total_earned_points"`
	TotalWithdrawnPoints decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"total_withdrawn_points"`

	Timestamps
}

// PointsTransaction is the append-only log behind UserPoints. Earning
// transactions (BINARY_COMMISSION, DIRECT_BONUS) track WithdrawnAmount so the
// FIFO auto-renewal consumption never over-draws a single transaction.
type PointsTransaction struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"index;not null;type:uuid" json:"member_id"`

	Type            PointsTransactionType   `gorm:"type:varchar(32);not null;index" json:"type"`
	Amount          decimal.Decimal         `gorm:"type:numeric(18,2);not null" json:"amount"`
	WithdrawnAmount decimal.Decimal         `gorm:"type:numeric(18,2);default:0" json:"withdrawn_amount"`
	Status          PointsTransactionStatus `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	Metadata        string                  `gorm:"type:jsonb" json:"metadata,omitempty"`

	Timestamps
}
