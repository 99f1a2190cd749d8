package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order volume inside the grace window that keeps a membership alive without
// touching points.
var reconsumptionOrderThreshold = decimal.NewFromInt(275)

// Days past EndDate before a membership with no successful renewal expires.
const reconsumptionGraceDays = 7

// ReconsumptionService is the daily membership lifecycle machine. For every
// due membership it tries, in order: order-based reconsumption, points-based
// auto-renewal, then expiration once the grace period has elapsed.
type ReconsumptionService struct {
	DB      *gorm.DB
	Volumes *VolumeService
	Points  *PointsService
}

func NewReconsumptionService(db *gorm.DB, volumes *VolumeService, points *PointsService) *ReconsumptionService {
	return &ReconsumptionService{DB: db, Volumes: volumes, Points: points}
}

// Run evaluates every ACTIVE or EXPIRED membership whose EndDate has passed.
// Same partial-failure contract as the cuts: per-membership errors are
// counted, the batch continues.
func (s *ReconsumptionService) Run(ctx context.Context) (*CutSummary, error) {
	now := nowFunc()
	today := dateOnly(now)

	summary := &CutSummary{
		Code:        models.CutReconsumption,
		PeriodStart: today,
		PeriodEnd:   today,
		StartedAt:   now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var memberships []models.Membership
		if err := tx.Preload("Plan").Preload("Member").
			Where("status IN ? AND end_date < ?",
				[]models.MembershipStatus{models.MembershipStatusActive, models.MembershipStatusExpired},
				today.AddDate(0, 0, 1),
			).Find(&memberships).Error; err != nil {
			return err
		}

		log.Printf("🔄 [RECONSUMPTION] evaluating %d due membership(s) for %s",
			len(memberships), today.Format("2006-01-02"))

		for i := range memberships {
			m := &memberships[i]
			outcome, err := s.processMembership(tx, m, today)
			if err != nil {
				log.Printf("❌ [RECONSUMPTION] membership %s failed: %v", m.ID, err)
				summary.add(RecordOutcome{MemberID: m.MemberID, Status: RecordFailed, Reason: err.Error()})
				continue
			}
			summary.add(outcome)
		}
		return nil
	})
	summary.FinishedAt = nowFunc()
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *ReconsumptionService) processMembership(tx *gorm.DB, m *models.Membership, today time.Time) (RecordOutcome, error) {
	if m.StartDate == nil || m.EndDate == nil {
		return RecordOutcome{}, fmt.Errorf("membership %s has no period dates", m.ID)
	}

	daysSinceExpiration := int(today.Sub(dateOnly(*m.EndDate)).Hours() / 24)

	// 1. Order-based reconsumption.
	orderTotal, err := s.approvedOrderTotal(tx, m)
	if err != nil {
		return RecordOutcome{}, err
	}
	if orderTotal.GreaterThanOrEqual(reconsumptionOrderThreshold) {
		if err := s.renew(tx, m, orderTotal, nil, "RECONSUMPTION"); err != nil {
			return RecordOutcome{}, err
		}
		return RecordOutcome{MemberID: m.MemberID, Status: RecordProcessed, Reason: "order reconsumption"}, nil
	}

	// 2. Points-based auto-renewal.
	if m.AutoRenewal && m.MinimumReconsumptionAmount.GreaterThan(decimal.Zero) {
		renewed, err := s.autoRenew(tx, m)
		if err != nil {
			return RecordOutcome{}, err
		}
		if renewed {
			return RecordOutcome{MemberID: m.MemberID, Status: RecordProcessed, Reason: "auto renewal"}, nil
		}
	}

	// 3. Expiration, only after the grace period. An already-EXPIRED row stays
	// eligible for a late renewal above but is not expired again.
	if daysSinceExpiration >= reconsumptionGraceDays {
		if m.Status == models.MembershipStatusExpired {
			return RecordOutcome{MemberID: m.MemberID, Status: RecordSkipped, Reason: "already expired"}, nil
		}
		m.Status = models.MembershipStatusExpired
		if err := tx.Save(m).Error; err != nil {
			return RecordOutcome{}, err
		}
		if err := s.logHistory(tx, m.ID, "EXPIRED", fmt.Sprintf("no reconsumption %d days after end date", daysSinceExpiration)); err != nil {
			return RecordOutcome{}, err
		}
		return RecordOutcome{MemberID: m.MemberID, Status: RecordCancelled, Reason: "expired after grace period"}, nil
	}

	// Inside the grace window: leave untouched, retried tomorrow.
	return RecordOutcome{MemberID: m.MemberID, Status: RecordSkipped, Reason: "within grace period"}, nil
}

// approvedOrderTotal sums the member's approved orders inside the grace
// window [StartDate+7d, EndDate+7d].
func (s *ReconsumptionService) approvedOrderTotal(tx *gorm.DB, m *models.Membership) (decimal.Decimal, error) {
	windowStart := m.StartDate.AddDate(0, 0, 7)
	windowEnd := m.EndDate.AddDate(0, 0, 7)

	var total decimal.Decimal
	row := tx.Model(&models.Order{}).
		Where("member_id = ? AND status = ? AND created_at BETWEEN ? AND ?",
			m.MemberID, models.OrderStatusApproved, windowStart, windowEnd).
		Select("COALESCE(SUM(total_amount), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// autoRenew tries the points path. Insufficient balance is an expected
// outcome: it reports false so the caller falls through to expiration.
func (s *ReconsumptionService) autoRenew(tx *gorm.DB, m *models.Membership) (bool, error) {
	amount := m.MinimumReconsumptionAmount

	wtx, _, err := s.Points.ConsumePointsFIFO(tx, m.MemberID, amount, map[string]interface{}{
		"reason":        "membership auto renewal",
		"membership_id": m.ID,
	})
	if errors.Is(err, ErrInsufficientPoints) {
		log.Printf("ℹ️ [RECONSUMPTION] member %s lacks points for auto renewal (needs %s)", m.MemberID, amount)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Synthesize an internal payment so the renewal reconciles like any
	// gateway payment.
	payment := &models.Payment{
		ID:                uuid.NewString(),
		MemberID:          m.MemberID,
		Amount:            amount,
		Status:            models.PaymentStatusCompleted,
		Method:            models.PaymentMethodPoints,
		RelatedEntityType: "points_transaction",
		RelatedEntityID:   wtx.ID,
	}
	if err := tx.Create(payment).Error; err != nil {
		return false, err
	}

	if err := s.renew(tx, m, amount, &payment.ID, "AUTO_RENEWAL"); err != nil {
		return false, err
	}
	return true, nil
}

// renew shifts the membership period one month forward, records the
// reconsumption row and propagates the renewal volume up the tree.
func (s *ReconsumptionService) renew(tx *gorm.DB, m *models.Membership, amount decimal.Decimal, paymentID *string, action string) error {
	periodDate := *m.EndDate

	recon := &models.MembershipReconsumption{
		ID:             uuid.NewString(),
		MembershipID:   m.ID,
		Amount:         amount,
		Status:         models.ReconsumptionStatusActive,
		PeriodDate:     periodDate,
		PaymentID:      paymentID,
		PaymentDetails: "{}",
	}
	if err := tx.Create(recon).Error; err != nil {
		return err
	}

	newStart := m.StartDate.AddDate(0, 1, 0)
	newEnd := m.EndDate.AddDate(0, 1, 0)
	m.StartDate = &newStart
	m.EndDate = &newEnd
	m.NextReconsumptionDate = &newEnd
	m.Status = models.MembershipStatusActive
	if err := tx.Save(m).Error; err != nil {
		return err
	}

	var eventPaymentID string
	if paymentID != nil {
		eventPaymentID = *paymentID
	}
	if _, err := s.Volumes.CreditTreeVolume(tx, VolumeEvent{
		Kind:      VolumeEventReconsumption,
		Member:    &m.Member,
		Amount:    amount,
		PaymentID: eventPaymentID,
	}); err != nil {
		return err
	}

	return s.logHistory(tx, m.ID, action,
		fmt.Sprintf("period shifted to %s – %s, amount %s", newStart.Format("2006-01-02"), newEnd.Format("2006-01-02"), amount))
}

func (s *ReconsumptionService) logHistory(tx *gorm.DB, membershipID, action, notes string) error {
	return tx.Create(&models.MembershipHistory{
		ID:           uuid.NewString(),
		MembershipID: membershipID,
		Action:       action,
		Notes:        notes,
		Changes:      "{}",
	}).Error
}
