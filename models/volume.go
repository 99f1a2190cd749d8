package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type VolumeStatus string

const (
	VolumeStatusPending   VolumeStatus = "PENDING"
	VolumeStatusProcessed VolumeStatus = "PROCESSED"
	VolumeStatusCancelled VolumeStatus = "CANCELLED"
)

// WeeklyVolume is the weekly ledger row for one member and one Monday–Sunday
// week. The propagator accumulates into the single PENDING row per
// (member, week); the weekly cut consumes it.
//
// The composite unique index is what makes accumulation idempotent: there is
// never a second row for the same member and week.
type WeeklyVolume struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"not null;type:uuid;uniqueIndex:idx_weekly_member_period" json:"member_id"`

	WeekStartDate time.Time `gorm:"not null;uniqueIndex:idx_weekly_member_period" json:"week_start_date"`
	WeekEndDate   time.Time `gorm:"not null;uniqueIndex:idx_weekly_member_period" json:"week_end_date"`

	LeftVolume      decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"left_volume"`
	RightVolume     decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"right_volume"`
	CarryOverVolume decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"carry_over_volume"`

	Status       VolumeStatus    `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	SelectedSide *Side           `gorm:"type:varchar(8)" json:"selected_side,omitempty"` // lower-volume side once processed
	PaidAmount   decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"paid_amount"`
	Reason       string          `gorm:"type:text" json:"reason,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`

	Timestamps
}

// WeeklyVolumeHistory links a credited payment to the ledger row and side it
// landed on, and later to the commission transaction that paid it out. This is
// the reconciliation trail from payout back to originating payment.
type WeeklyVolumeHistory struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	WeeklyVolumeID string  `gorm:"index;not null;type:uuid" json:"weekly_volume_id"`
	PaymentID      *string `gorm:"index;type:uuid" json:"payment_id,omitempty"` // nil for credits with no backing payment

	Side   Side            `gorm:"type:varchar(8);not null" json:"side"`
	Amount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Source string          `gorm:"type:varchar(32)" json:"source"` // VolumeEventKind that produced the credit

	PointsTransactionID *string `gorm:"index;type:uuid" json:"points_transaction_id,omitempty"`

	Timestamps
}

// MonthlyVolumeRank is the monthly ledger row consumed by the rank cut.
type MonthlyVolumeRank struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"not null;type:uuid;uniqueIndex:idx_monthly_member_period" json:"member_id"`

	MonthStartDate time.Time `gorm:"not null;uniqueIndex:idx_monthly_member_period" json:"month_start_date"`
	MonthEndDate   time.Time `gorm:"not null;uniqueIndex:idx_monthly_member_period" json:"month_end_date"`

	LeftVolume  decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"left_volume"`
	RightVolume decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"right_volume"`
	TotalVolume decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"total_volume"`

	LeftDirects  int `gorm:"default:0" json:"left_directs"`
	RightDirects int `gorm:"default:0" json:"right_directs"`

	AssignedRankID *string      `gorm:"type:uuid" json:"assigned_rank_id,omitempty"`
	Status         VolumeStatus `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	Reason         string       `gorm:"type:text" json:"reason,omitempty"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`

	Timestamps
}
