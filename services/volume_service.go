package services

import (
	"errors"
	"log"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VolumeEventKind tags the monetary event feeding the propagator.
type VolumeEventKind string

const (
	VolumeEventMembershipPurchase VolumeEventKind = "MEMBERSHIP_PURCHASE"
	VolumeEventPlanUpgrade        VolumeEventKind = "PLAN_UPGRADE"
	VolumeEventOrderPayment       VolumeEventKind = "ORDER_PAYMENT"
	VolumeEventReconsumption      VolumeEventKind = "RECONSUMPTION"
)

// VolumeEvent is the single input of the propagator. All four call sites
// (membership purchase, plan upgrade, order payment, reconsumption) share one
// traversal; only Kind and Amount differ.
type VolumeEvent struct {
	Kind      VolumeEventKind
	Member    *models.Member
	Amount    decimal.Decimal
	PaymentID string
}

// CreditOutcome reports, per ancestor, whether a credit happened and why not
// when it didn't. A skipped ancestor is an expected outcome, never an error.
type CreditOutcome struct {
	MemberID string      `json:"member_id"`
	Credited bool        `json:"credited"`
	Side     models.Side `json:"side,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// VolumeService is the volume ledger plus the tree volume propagator. It is
// the only writer of PENDING ledger rows outside the cuts.
type VolumeService struct {
	Nav *TreeNavigator
}

func NewVolumeService(nav *TreeNavigator) *VolumeService {
	return &VolumeService{Nav: nav}
}

// CreditTreeVolume walks every ancestor of the event's member and credits the
// weekly and monthly ledgers of each qualifying one. Must run inside the
// transaction of the triggering approval so a crash rolls the whole
// propagation back.
func (s *VolumeService) CreditTreeVolume(tx *gorm.DB, event VolumeEvent) ([]CreditOutcome, error) {
	if event.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	ancestors, err := s.Nav.AncestorsOf(tx, event.Member.ID)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	week := WeekOf(now)
	month := MonthOf(now)

	// Order-sum renewals have no backing payment; the uuid column must stay NULL.
	var paymentID *string
	if event.PaymentID != "" {
		paymentID = &event.PaymentID
	}

	outcomes := make([]CreditOutcome, 0, len(ancestors))
	for i := range ancestors {
		ancestor := &ancestors[i]
		outcome := CreditOutcome{MemberID: ancestor.ID}

		membership, err := FindActiveMembership(tx, ancestor.ID)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			outcome.Reason = "no active membership"
			outcomes = append(outcomes, outcome)
			continue
		}
		if membership.Plan.CommissionPercentage.LessThanOrEqual(decimal.Zero) {
			outcome.Reason = "plan has no binary commission"
			outcomes = append(outcomes, outcome)
			continue
		}

		side, ok, err := s.Nav.SideOf(tx, ancestor, event.Member.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Tree and sponsor data disagree. Skip, never fail the event.
			log.Printf("⚠️ [VOLUME] member %s not found under either leg of ancestor %s, skipping credit", event.Member.ID, ancestor.ID)
			outcome.Reason = "member not in ancestor tree"
			outcomes = append(outcomes, outcome)
			continue
		}

		weekly, err := s.CreditWeeklyVolume(tx, ancestor.ID, week, side, event.Amount)
		if err != nil {
			return nil, err
		}
		if _, err := s.CreditMonthlyVolume(tx, ancestor.ID, month, side, event.Amount); err != nil {
			return nil, err
		}

		history := &models.WeeklyVolumeHistory{
			ID:             uuid.NewString(),
			WeeklyVolumeID: weekly.ID,
			PaymentID:      paymentID,
			Side:           side,
			Amount:         event.Amount,
			Source:         string(event.Kind),
		}
		if err := tx.Create(history).Error; err != nil {
			return nil, err
		}

		outcome.Credited = true
		outcome.Side = side
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// CreditWeeklyVolume adds amount to the given side of the member's unique
// PENDING row for the week, creating the row when absent. The composite
// unique index makes two credits of a then b land as a+b on one row.
func (s *VolumeService) CreditWeeklyVolume(tx *gorm.DB, memberID string, week Period, side models.Side, amount decimal.Decimal) (*models.WeeklyVolume, error) {
	// Locked: an approval hook and a running cut may target the same row.
	var wv models.WeeklyVolume
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(
		"member_id = ? AND week_start_date = ? AND week_end_date = ? AND status = ?",
		memberID, week.Start, week.End, models.VolumeStatusPending,
	).First(&wv).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		wv = models.WeeklyVolume{
			ID:            uuid.NewString(),
			MemberID:      memberID,
			WeekStartDate: week.Start,
			WeekEndDate:   week.End,
			Status:        models.VolumeStatusPending,
		}
		if side == models.SideLeft {
			wv.LeftVolume = amount
		} else {
			wv.RightVolume = amount
		}
		if err := tx.Create(&wv).Error; err != nil {
			return nil, err
		}
		return &wv, nil
	}
	if err != nil {
		return nil, err
	}

	if side == models.SideLeft {
		wv.LeftVolume = wv.LeftVolume.Add(amount)
	} else {
		wv.RightVolume = wv.RightVolume.Add(amount)
	}
	if err := tx.Save(&wv).Error; err != nil {
		return nil, err
	}
	return &wv, nil
}

// CreditMonthlyVolume is the monthly counterpart of CreditWeeklyVolume.
func (s *VolumeService) CreditMonthlyVolume(tx *gorm.DB, memberID string, month Period, side models.Side, amount decimal.Decimal) (*models.MonthlyVolumeRank, error) {
	var mv models.MonthlyVolumeRank
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(
		"member_id = ? AND month_start_date = ? AND month_end_date = ? AND status = ?",
		memberID, month.Start, month.End, models.VolumeStatusPending,
	).First(&mv).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		mv = models.MonthlyVolumeRank{
			ID:             uuid.NewString(),
			MemberID:       memberID,
			MonthStartDate: month.Start,
			MonthEndDate:   month.End,
			Status:         models.VolumeStatusPending,
		}
		if side == models.SideLeft {
			mv.LeftVolume = amount
		} else {
			mv.RightVolume = amount
		}
		mv.TotalVolume = mv.LeftVolume.Add(mv.RightVolume)
		if err := tx.Create(&mv).Error; err != nil {
			return nil, err
		}
		return &mv, nil
	}
	if err != nil {
		return nil, err
	}

	if side == models.SideLeft {
		mv.LeftVolume = mv.LeftVolume.Add(amount)
	} else {
		mv.RightVolume = mv.RightVolume.Add(amount)
	}
	mv.TotalVolume = mv.LeftVolume.Add(mv.RightVolume)
	if err := tx.Save(&mv).Error; err != nil {
		return nil, err
	}
	return &mv, nil
}
