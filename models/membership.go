package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MembershipStatus string

const (
	MembershipStatusPending  MembershipStatus = "PENDING"
	MembershipStatusActive   MembershipStatus = "ACTIVE"
	MembershipStatusInactive MembershipStatus = "INACTIVE"
	MembershipStatusExpired  MembershipStatus = "EXPIRED"
)

// Membership is a member's subscription to a Plan.
// Lifecycle: PENDING on request → ACTIVE on payment approval (dates set) →
// EXPIRED after the grace period with no reconsumption, or re-activated by
// order-based reconsumption / points auto-renewal.
// Business logic keeps at most one ACTIVE row per member.
type Membership struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"index;not null;type:uuid" json:"member_id"`
	PlanID   string `gorm:"not null;type:uuid" json:"plan_id"`

	Status                MembershipStatus `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	StartDate             *time.Time       `json:"start_date,omitempty"`
	EndDate               *time.Time       `gorm:"index" json:"end_date,omitempty"`
	NextReconsumptionDate *time.Time       `json:"next_reconsumption_date,omitempty"`

	MinimumReconsumptionAmount decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"minimum_reconsumption_amount"`
	AutoRenewal                bool            `gorm:"default:false" json:"auto_renewal"`

	Plan   Plan   `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Member Member `gorm:"foreignKey:MemberID" json:"-"`

	Timestamps
}

// MembershipHistory is an append-only lifecycle log.
type MembershipHistory struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	MembershipID string `gorm:"index;not null;type:uuid" json:"membership_id"`
	Action       string `gorm:"type:varchar(32);not null" json:"action"` // ACTIVATED, RECONSUMPTION, AUTO_RENEWAL, EXPIRED...
	Notes        string `gorm:"type:text" json:"notes,omitempty"`
	Changes      string `gorm:"type:jsonb" json:"changes,omitempty"`

	Timestamps
}

type ReconsumptionStatus string

const (
	ReconsumptionStatusPending   ReconsumptionStatus = "PENDING"
	ReconsumptionStatusActive    ReconsumptionStatus = "ACTIVE"
	ReconsumptionStatusCancelled ReconsumptionStatus = "CANCELLED"
)

// MembershipReconsumption is one reconsumption attempt for a period.
type MembershipReconsumption struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	MembershipID string `gorm:"index;not null;type:uuid" json:"membership_id"`

	Amount         decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"amount"`
	Status         ReconsumptionStatus `gorm:"type:varchar(16);default:'PENDING'" json:"status"`
	PeriodDate     time.Time           `gorm:"not null" json:"period_date"`
	PaymentID      *string             `gorm:"type:uuid" json:"payment_id,omitempty"`
	PaymentDetails string              `gorm:"type:jsonb" json:"payment_details,omitempty"`

	Timestamps
}
