package services

import (
	"context"
	"fmt"
	"log"

	"binary-plan-engine/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lower-side volume caps by active direct count. 0–1 directs pay uncapped.
var volumeCapTiers = map[int]decimal.Decimal{
	2: decimal.NewFromInt(12500),
	3: decimal.NewFromInt(50000),
	4: decimal.NewFromInt(150000),
}

var volumeCapMax = decimal.NewFromInt(250000)

// capForDirects returns the lower-side volume cap for the given direct count,
// or nil when uncapped.
func capForDirects(directs int) *decimal.Decimal {
	if directs <= 1 {
		return nil
	}
	if cap, ok := volumeCapTiers[directs]; ok {
		return &cap
	}
	return &volumeCapMax
}

// WeeklyCutService settles last week's PENDING weekly ledger rows: it pays
// binary commission on the lower leg, rolls the excess of the higher leg into
// the current week, and cancels (with a forfeiting carry) rows that fail
// qualification.
type WeeklyCutService struct {
	DB      *gorm.DB
	Nav     *TreeNavigator
	Volumes *VolumeService
	Points  *PointsService
	Ranks   *RankService
	Reports *ReportService
}

func NewWeeklyCutService(db *gorm.DB, nav *TreeNavigator, volumes *VolumeService, points *PointsService, ranks *RankService, reports *ReportService) *WeeklyCutService {
	return &WeeklyCutService{DB: db, Nav: nav, Volumes: volumes, Points: points, Ranks: ranks, Reports: reports}
}

// Run processes the previous Monday–Sunday week inside one transaction.
// Per-row failures are counted and swallowed; only setup/commit failures roll
// the batch back and propagate.
func (s *WeeklyCutService) Run(ctx context.Context) (*CutSummary, error) {
	now := nowFunc()
	week := PreviousWeek(now)
	current := WeekOf(now)

	summary := &CutSummary{
		Code:        models.CutWeeklyVolume,
		PeriodStart: week.Start,
		PeriodEnd:   week.End,
		StartedAt:   now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Rows are locked for the whole batch so hook credits queue behind it.
		var rows []models.WeeklyVolume
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(
			"status = ? AND week_start_date = ? AND week_end_date = ?",
			models.VolumeStatusPending, week.Start, week.End,
		).Find(&rows).Error; err != nil {
			return err
		}

		log.Printf("📊 [WEEKLY_CUT] settling %d pending rows for week %s – %s",
			len(rows), week.Start.Format("2006-01-02"), week.End.Format("2006-01-02"))

		for i := range rows {
			row := &rows[i]
			summary.TotalVolume = summary.TotalVolume.Add(row.LeftVolume).Add(row.RightVolume)

			outcome, err := s.processRow(tx, row, current)
			if err != nil {
				// One member's failure never aborts the batch.
				log.Printf("❌ [WEEKLY_CUT] member %s failed: %v", row.MemberID, err)
				summary.add(RecordOutcome{MemberID: row.MemberID, Status: RecordFailed, Reason: err.Error()})
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

	// The financial work is committed; report delivery is best-effort.
	if s.Reports != nil {
		if err := s.Reports.DeliverCutReport(summary); err != nil {
			log.Printf("⚠️ [WEEKLY_CUT] report delivery failed (ignored): %v", err)
		}
	}

	return summary, nil
}

func (s *WeeklyCutService) processRow(tx *gorm.DB, row *models.WeeklyVolume, current Period) (RecordOutcome, error) {
	var member models.Member
	if err := tx.First(&member, "id = ?", row.MemberID).Error; err != nil {
		return RecordOutcome{}, fmt.Errorf("member lookup: %w", err)
	}

	membership, err := FindActiveMembership(tx, row.MemberID)
	if err != nil {
		return RecordOutcome{}, err
	}
	if membership == nil {
		if err := s.cancelRow(tx, row, current, "no active membership"); err != nil {
			return RecordOutcome{}, err
		}
		return RecordOutcome{MemberID: row.MemberID, Status: RecordCancelled, Reason: "no active membership"}, nil
	}

	_, leftActive, err := s.Nav.LegActivity(tx, &member, models.SideLeft)
	if err != nil {
		return RecordOutcome{}, err
	}
	_, rightActive, err := s.Nav.LegActivity(tx, &member, models.SideRight)
	if err != nil {
		return RecordOutcome{}, err
	}
	if !leftActive || !rightActive {
		reason := "left leg has no active referral"
		if leftActive {
			reason = "right leg has no active referral"
		}
		lowest, err := s.Ranks.LowestRank(tx)
		if err != nil {
			return RecordOutcome{}, err
		}
		if _, err := s.Ranks.AssignRank(tx, row.MemberID, lowest); err != nil {
			return RecordOutcome{}, err
		}
		if err := s.cancelRow(tx, row, current, reason); err != nil {
			return RecordOutcome{}, err
		}
		return RecordOutcome{MemberID: row.MemberID, Status: RecordCancelled, Reason: reason}, nil
	}

	// Ties favor LEFT as the higher side.
	higherSide, lowerSide := models.SideLeft, models.SideRight
	higherVolume, lowerVolume := row.LeftVolume, row.RightVolume
	if row.RightVolume.GreaterThan(row.LeftVolume) {
		higherSide, lowerSide = models.SideRight, models.SideLeft
		higherVolume, lowerVolume = row.RightVolume, row.LeftVolume
	}

	directs, err := s.Nav.CountActiveDirects(tx, &member)
	if err != nil {
		return RecordOutcome{}, err
	}

	effectiveLower := lowerVolume
	capApplied := ""
	if cap := capForDirects(directs); cap != nil {
		effectiveLower = decimal.Min(lowerVolume, *cap)
		capApplied = cap.String()
	}

	commission := effectiveLower.Mul(membership.Plan.CommissionPercentage).Div(decimal.NewFromInt(100))

	if commission.GreaterThan(decimal.Zero) {
		ptx, err := s.Points.CreditPoints(tx, row.MemberID, commission, models.PointsTxBinaryCommission, map[string]interface{}{
			"weekly_volume_id": row.ID,
			"week_start":       row.WeekStartDate.Format("2006-01-02"),
			"week_end":         row.WeekEndDate.Format("2006-01-02"),
			"left_volume":      row.LeftVolume,
			"right_volume":     row.RightVolume,
			"selected_side":    lowerSide,
			"effective_volume": effectiveLower,
			"cap_applied":      capApplied,
			"directs":          directs,
			"percentage":       membership.Plan.CommissionPercentage,
		})
		if err != nil {
			return RecordOutcome{}, err
		}

		// Stamp the paying transaction on every history record of the paid
		// side so each contributing payment reconciles with the payout.
		if err := tx.Model(&models.WeeklyVolumeHistory{}).
			Where("weekly_volume_id = ? AND side = ? AND points_transaction_id IS NULL", row.ID, lowerSide).
			Update("points_transaction_id", ptx.ID).Error; err != nil {
			return RecordOutcome{}, err
		}
	}

	if diff := higherVolume.Sub(lowerVolume); diff.GreaterThan(decimal.Zero) {
		if err := s.carryOver(tx, row.MemberID, current, higherSide, diff); err != nil {
			return RecordOutcome{}, err
		}
	}

	processedAt := nowFunc()
	row.Status = models.VolumeStatusProcessed
	row.SelectedSide = &lowerSide
	row.PaidAmount = commission
	row.ProcessedAt = &processedAt
	if err := tx.Save(row).Error; err != nil {
		return RecordOutcome{}, err
	}

	return RecordOutcome{MemberID: row.MemberID, Status: RecordProcessed, Paid: commission}, nil
}

// cancelRow marks the row CANCELLED and forfeits its combined volume into the
// current week's PENDING row, added to BOTH sides so it cannot pay out on its
// own.
func (s *WeeklyCutService) cancelRow(tx *gorm.DB, row *models.WeeklyVolume, current Period, reason string) error {
	total := row.LeftVolume.Add(row.RightVolume)
	if total.GreaterThan(decimal.Zero) {
		if _, err := s.Volumes.CreditWeeklyVolume(tx, row.MemberID, current, models.SideLeft, total); err != nil {
			return err
		}
		next, err := s.Volumes.CreditWeeklyVolume(tx, row.MemberID, current, models.SideRight, total)
		if err != nil {
			return err
		}
		next.CarryOverVolume = next.CarryOverVolume.Add(total)
		if err := tx.Save(next).Error; err != nil {
			return err
		}
	}

	processedAt := nowFunc()
	row.Status = models.VolumeStatusCancelled
	row.Reason = reason
	row.ProcessedAt = &processedAt
	return tx.Save(row).Error
}

func (s *WeeklyCutService) carryOver(tx *gorm.DB, memberID string, current Period, side models.Side, amount decimal.Decimal) error {
	next, err := s.Volumes.CreditWeeklyVolume(tx, memberID, current, side, amount)
	if err != nil {
		return err
	}
	next.CarryOverVolume = next.CarryOverVolume.Add(amount)
	return tx.Save(next).Error
}
