package models

import (
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Plan is a membership tier. BinaryPoints is the tree volume contributed by a
// purchase of this plan; DirectCommissionAmount is paid to the sponsor on
// approval.
type Plan struct {
	ID                     string          `gorm:"primaryKey;type:uuid" json:"id"`
	Code                   string          `gorm:"uniqueIndex;not null" json:"code"` // slug of Name
	Name                   string          `gorm:"not null" json:"name"`
	Price                  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"price"`
	BinaryPoints           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"binary_points"`
	CommissionPercentage   decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"commission_percentage"`
	DirectCommissionAmount decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"direct_commission_amount"`
	IsActive               bool            `gorm:"default:true" json:"is_active"`

	Timestamps
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Code == "" {
		p.Code = slug.Make(p.Name)
	}
	return nil
}

type UpgradeStatus string

const (
	UpgradeStatusPending  UpgradeStatus = "PENDING"
	UpgradeStatusApproved UpgradeStatus = "APPROVED"
	UpgradeStatusRejected UpgradeStatus = "REJECTED"
)

// PlanUpgrade records a move from one plan to a higher one. Only the positive
// binary-points delta feeds the tree volume propagator.
type PlanUpgrade struct {
	ID         string        `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID   string        `gorm:"index;not null;type:uuid" json:"member_id"`
	FromPlanID string        `gorm:"not null;type:uuid" json:"from_plan_id"`
	ToPlanID   string        `gorm:"not null;type:uuid" json:"to_plan_id"`
	Status     UpgradeStatus `gorm:"type:varchar(16);default:'PENDING'" json:"status"`
	PaymentID  *string       `gorm:"type:uuid" json:"payment_id,omitempty"`

	FromPlan Plan `gorm:"foreignKey:FromPlanID" json:"from_plan,omitempty"`
	ToPlan   Plan `gorm:"foreignKey:ToPlanID" json:"to_plan,omitempty"`

	Timestamps
}
