package services

import (
	"context"
	"fmt"
	"log"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApprovalService is the payment-approved entry point of the engine. Each hook
// runs one transaction that flips the approved entity's state and dispatches
// the tree volume propagator with the amount that event contributes.
type ApprovalService struct {
	DB       *gorm.DB
	Volumes  *VolumeService
	Points   *PointsService
	Notifier Notifier
}

func NewApprovalService(db *gorm.DB, volumes *VolumeService, points *PointsService, notifier Notifier) *ApprovalService {
	return &ApprovalService{DB: db, Volumes: volumes, Points: points, Notifier: notifier}
}

// OnMembershipApproved activates the membership, enforces the single-ACTIVE
// invariant, credits the plan's binary points to every qualifying ancestor and
// pays the sponsor's direct bonus.
func (s *ApprovalService) OnMembershipApproved(ctx context.Context, membershipID, paymentID string) error {
	var bonusNotification *directBonusNotification

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Membership
		if err := tx.Preload("Plan").Preload("Member").First(&m, "id = ?", membershipID).Error; err != nil {
			return err
		}
		if m.Status == models.MembershipStatusActive {
			log.Printf("ℹ️ [APPROVAL] membership %s already active, skipping", membershipID)
			return nil
		}

		// One ACTIVE membership per member: retire any other active row.
		if err := tx.Model(&models.Membership{}).
			Where("member_id = ? AND status = ? AND id <> ?", m.MemberID, models.MembershipStatusActive, m.ID).
			Update("status", models.MembershipStatusInactive).Error; err != nil {
			return err
		}

		now := nowFunc()
		end := now.AddDate(0, 1, 0)
		m.Status = models.MembershipStatusActive
		m.StartDate = &now
		m.EndDate = &end
		m.NextReconsumptionDate = &end
		if err := tx.Save(&m).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.MembershipHistory{
			ID:           uuid.NewString(),
			MembershipID: m.ID,
			Action:       "ACTIVATED",
			Notes:        fmt.Sprintf("payment %s approved", paymentID),
			Changes:      "{}",
		}).Error; err != nil {
			return err
		}

		if _, err := s.Volumes.CreditTreeVolume(tx, VolumeEvent{
			Kind:      VolumeEventMembershipPurchase,
			Member:    &m.Member,
			Amount:    m.Plan.BinaryPoints,
			PaymentID: paymentID,
		}); err != nil {
			return err
		}

		return s.payDirectBonus(tx, &m, &bonusNotification)
	})
	if err != nil {
		return err
	}

	if bonusNotification != nil {
		if err := s.Notifier.NotifyMember(bonusNotification.MemberID, "direct-bonus", map[string]interface{}{
			"amount":    bonusNotification.Amount,
			"plan_code": bonusNotification.PlanCode,
		}); err != nil {
			log.Printf("⚠️ [APPROVAL] direct-bonus notification failed (ignored): %v", err)
		}
	}
	return nil
}

// OnOrderApproved marks the order approved and credits its total up the tree.
func (s *ApprovalService) OnOrderApproved(ctx context.Context, orderID, paymentID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}
		if order.Status == models.OrderStatusApproved {
			log.Printf("ℹ️ [APPROVAL] order %s already approved, skipping", orderID)
			return nil
		}

		var member models.Member
		if err := tx.First(&member, "id = ?", order.MemberID).Error; err != nil {
			return err
		}

		now := nowFunc()
		order.Status = models.OrderStatusApproved
		order.ApprovedAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		_, err := s.Volumes.CreditTreeVolume(tx, VolumeEvent{
			Kind:      VolumeEventOrderPayment,
			Member:    &member,
			Amount:    order.TotalAmount,
			PaymentID: paymentID,
		})
		return err
	})
}

// OnPlanUpgradeApproved switches the active membership to the target plan and
// propagates only the positive binary-points delta.
func (s *ApprovalService) OnPlanUpgradeApproved(ctx context.Context, upgradeID, paymentID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var upgrade models.PlanUpgrade
		if err := tx.Preload("FromPlan").Preload("ToPlan").First(&upgrade, "id = ?", upgradeID).Error; err != nil {
			return err
		}
		if upgrade.Status == models.UpgradeStatusApproved {
			log.Printf("ℹ️ [APPROVAL] upgrade %s already approved, skipping", upgradeID)
			return nil
		}

		var member models.Member
		if err := tx.First(&member, "id = ?", upgrade.MemberID).Error; err != nil {
			return err
		}

		upgrade.Status = models.UpgradeStatusApproved
		if err := tx.Save(&upgrade).Error; err != nil {
			return err
		}

		membership, err := FindActiveMembership(tx, upgrade.MemberID)
		if err != nil {
			return err
		}
		if membership == nil {
			return ErrNoActiveMembership
		}
		membership.PlanID = upgrade.ToPlanID
		if err := tx.Save(membership).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.MembershipHistory{
			ID:           uuid.NewString(),
			MembershipID: membership.ID,
			Action:       "UPGRADED",
			Notes:        fmt.Sprintf("plan %s -> %s", upgrade.FromPlan.Code, upgrade.ToPlan.Code),
			Changes:      "{}",
		}).Error; err != nil {
			return err
		}

		delta := upgrade.ToPlan.BinaryPoints.Sub(upgrade.FromPlan.BinaryPoints)
		if delta.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		_, err = s.Volumes.CreditTreeVolume(tx, VolumeEvent{
			Kind:      VolumeEventPlanUpgrade,
			Member:    &member,
			Amount:    delta,
			PaymentID: paymentID,
		})
		return err
	})
}

// OnReconsumptionApproved activates a manually paid reconsumption, shifts the
// membership period and propagates the reconsumption amount.
func (s *ApprovalService) OnReconsumptionApproved(ctx context.Context, reconsumptionID, paymentID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recon models.MembershipReconsumption
		if err := tx.First(&recon, "id = ?", reconsumptionID).Error; err != nil {
			return err
		}
		if recon.Status == models.ReconsumptionStatusActive {
			log.Printf("ℹ️ [APPROVAL] reconsumption %s already active, skipping", reconsumptionID)
			return nil
		}

		var m models.Membership
		if err := tx.Preload("Member").First(&m, "id = ?", recon.MembershipID).Error; err != nil {
			return err
		}

		recon.Status = models.ReconsumptionStatusActive
		recon.PaymentID = &paymentID
		if err := tx.Save(&recon).Error; err != nil {
			return err
		}

		if m.StartDate != nil && m.EndDate != nil {
			newStart := m.StartDate.AddDate(0, 1, 0)
			newEnd := m.EndDate.AddDate(0, 1, 0)
			m.StartDate = &newStart
			m.EndDate = &newEnd
			m.NextReconsumptionDate = &newEnd
		}
		m.Status = models.MembershipStatusActive
		if err := tx.Save(&m).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.MembershipHistory{
			ID:           uuid.NewString(),
			MembershipID: m.ID,
			Action:       "RECONSUMPTION",
			Notes:        fmt.Sprintf("payment %s approved, amount %s", paymentID, recon.Amount),
			Changes:      "{}",
		}).Error; err != nil {
			return err
		}

		_, err := s.Volumes.CreditTreeVolume(tx, VolumeEvent{
			Kind:      VolumeEventReconsumption,
			Member:    &m.Member,
			Amount:    recon.Amount,
			PaymentID: paymentID,
		})
		return err
	})
}

type directBonusNotification struct {
	MemberID string
	Amount   decimal.Decimal
	PlanCode string
}

// payDirectBonus credits the sponsor's DirectCommissionAmount as a
// DIRECT_BONUS transaction. No sponsor or a zero bonus is a normal outcome.
func (s *ApprovalService) payDirectBonus(tx *gorm.DB, m *models.Membership, note **directBonusNotification) error {
	if m.Plan.DirectCommissionAmount.LessThanOrEqual(decimal.Zero) || m.Member.ReferrerCode == "" {
		return nil
	}

	var sponsor models.Member
	err := tx.Where("referral_code = ?", m.Member.ReferrerCode).First(&sponsor).Error
	if err == gorm.ErrRecordNotFound {
		log.Printf("⚠️ [APPROVAL] sponsor code %s of member %s not found, skipping direct bonus", m.Member.ReferrerCode, m.MemberID)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.Points.CreditPoints(tx, sponsor.ID, m.Plan.DirectCommissionAmount, models.PointsTxDirectBonus, map[string]interface{}{
		"sponsee_id":    m.MemberID,
		"membership_id": m.ID,
		"plan_code":     m.Plan.Code,
	})
	if err != nil {
		return err
	}

	*note = &directBonusNotification{
		MemberID: sponsor.ID,
		Amount:   m.Plan.DirectCommissionAmount,
		PlanCode: m.Plan.Code,
	}
	return nil
}
