package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusApproved OrderStatus = "APPROVED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Order mirrors an approved product purchase. The reconsumption state machine
// sums approved orders inside the grace window; the propagator credits the
// order total up the tree on approval.
type Order struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"index;not null;type:uuid" json:"member_id"`

	TotalAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	Status      OrderStatus     `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`

	Timestamps
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
)

type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "GATEWAY"
	PaymentMethodPoints  PaymentMethod = "POINTS"
)

// Payment is the audit record every volume credit traces back to. Auto-renewal
// synthesizes a COMPLETED POINTS payment so renewals reconcile like any other
// monetary event.
type Payment struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID string `gorm:"index;not null;type:uuid" json:"member_id"`

	Amount            decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Status            PaymentStatus   `gorm:"type:varchar(16);default:'PENDING'" json:"status"`
	Method            PaymentMethod   `gorm:"type:varchar(16);default:'GATEWAY'" json:"method"`
	RelatedEntityType string          `gorm:"type:varchar(32)" json:"related_entity_type,omitempty"` // membership, order, upgrade, reconsumption
	RelatedEntityID   string          `gorm:"type:uuid" json:"related_entity_id,omitempty"`

	Timestamps
}
