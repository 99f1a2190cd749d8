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

// MonthlyCutService settles last month's PENDING monthly ledger rows: it
// assigns ranks from total volume and direct counts, and rolls every row's
// volume side-for-side into the next month. Unlike the weekly cut, qualified
// volume carries forward too.
type MonthlyCutService struct {
	DB       *gorm.DB
	Nav      *TreeNavigator
	Volumes  *VolumeService
	Ranks    *RankService
	Notifier Notifier
	Reports  *ReportService
}

func NewMonthlyCutService(db *gorm.DB, nav *TreeNavigator, volumes *VolumeService, ranks *RankService, notifier Notifier, reports *ReportService) *MonthlyCutService {
	return &MonthlyCutService{DB: db, Nav: nav, Volumes: volumes, Ranks: ranks, Notifier: notifier, Reports: reports}
}

// Run processes the previous calendar month inside one transaction with the
// same partial-failure contract as the weekly cut.
func (s *MonthlyCutService) Run(ctx context.Context) (*CutSummary, error) {
	now := nowFunc()
	month := PreviousMonth(now)
	next := MonthOf(now)

	summary := &CutSummary{
		Code:        models.CutMonthlyVolume,
		PeriodStart: month.Start,
		PeriodEnd:   month.End,
		StartedAt:   now,
	}

	var achieved []rankAchievement
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.MonthlyVolumeRank
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(
			"status = ? AND month_start_date = ? AND month_end_date = ?",
			models.VolumeStatusPending, month.Start, month.End,
		).Find(&rows).Error; err != nil {
			return err
		}

		log.Printf("📊 [MONTHLY_CUT] settling %d pending rows for month %s",
			len(rows), month.Start.Format("2006-01"))

		for i := range rows {
			row := &rows[i]
			summary.TotalVolume = summary.TotalVolume.Add(row.LeftVolume).Add(row.RightVolume)

			outcome, achievement, err := s.processRow(tx, row, next)
			if err != nil {
				log.Printf("❌ [MONTHLY_CUT] member %s failed: %v", row.MemberID, err)
				summary.add(RecordOutcome{MemberID: row.MemberID, Status: RecordFailed, Reason: err.Error()})
				continue
			}
			if achievement != nil {
				achieved = append(achieved, *achievement)
			}
			summary.add(outcome)
		}
		return nil
	})
	summary.FinishedAt = nowFunc()
	if err != nil {
		return nil, err
	}

	// Committed. Notifications and reporting are best-effort from here on.
	for _, a := range achieved {
		if err := s.Notifier.NotifyMember(a.MemberID, "rank-achieved", map[string]interface{}{
			"rank_code": a.RankCode,
			"rank_name": a.RankName,
		}); err != nil {
			log.Printf("⚠️ [MONTHLY_CUT] rank notification for %s failed (ignored): %v", a.MemberID, err)
		}
	}
	if s.Reports != nil {
		if err := s.Reports.DeliverCutReport(summary); err != nil {
			log.Printf("⚠️ [MONTHLY_CUT] report delivery failed (ignored): %v", err)
		}
	}

	return summary, nil
}

type rankAchievement struct {
	MemberID string
	RankCode string
	RankName string
}

func (s *MonthlyCutService) processRow(tx *gorm.DB, row *models.MonthlyVolumeRank, next Period) (RecordOutcome, *rankAchievement, error) {
	var member models.Member
	if err := tx.First(&member, "id = ?", row.MemberID).Error; err != nil {
		return RecordOutcome{}, nil, fmt.Errorf("member lookup: %w", err)
	}

	membership, err := FindActiveMembership(tx, row.MemberID)
	if err != nil {
		return RecordOutcome{}, nil, err
	}

	leftDirects, leftActive, err := s.Nav.LegActivity(tx, &member, models.SideLeft)
	if err != nil {
		return RecordOutcome{}, nil, err
	}
	rightDirects, rightActive, err := s.Nav.LegActivity(tx, &member, models.SideRight)
	if err != nil {
		return RecordOutcome{}, nil, err
	}

	if membership == nil || !leftActive || !rightActive {
		reason := "no active membership"
		if membership != nil {
			reason = "left leg has no active referral"
			if leftActive {
				reason = "right leg has no active referral"
			}
		}
		lowest, err := s.Ranks.LowestRank(tx)
		if err != nil {
			return RecordOutcome{}, nil, err
		}
		if _, err := s.Ranks.AssignRank(tx, row.MemberID, lowest); err != nil {
			return RecordOutcome{}, nil, err
		}
		if err := s.closeRow(tx, row, next, models.VolumeStatusCancelled, reason, &lowest.ID, leftDirects, rightDirects); err != nil {
			return RecordOutcome{}, nil, err
		}
		return RecordOutcome{MemberID: row.MemberID, Status: RecordCancelled, Reason: reason}, nil, nil
	}

	totalVolume := row.LeftVolume.Add(row.RightVolume)
	totalDirects := leftDirects + rightDirects

	rank, err := s.Ranks.RankForVolume(tx, totalVolume, totalDirects)
	if err != nil {
		return RecordOutcome{}, nil, err
	}
	advanced, err := s.Ranks.AssignRank(tx, row.MemberID, rank)
	if err != nil {
		return RecordOutcome{}, nil, err
	}

	if err := s.closeRow(tx, row, next, models.VolumeStatusProcessed, "", &rank.ID, leftDirects, rightDirects); err != nil {
		return RecordOutcome{}, nil, err
	}

	var achievement *rankAchievement
	if advanced {
		achievement = &rankAchievement{MemberID: row.MemberID, RankCode: rank.Code, RankName: rank.Name}
	}

	return RecordOutcome{MemberID: row.MemberID, Status: RecordProcessed, Reason: rank.Code}, achievement, nil
}

// closeRow finalizes the row and always carries its volumes side-for-side
// into the next month's PENDING row.
func (s *MonthlyCutService) closeRow(tx *gorm.DB, row *models.MonthlyVolumeRank, next Period, status models.VolumeStatus, reason string, rankID *string, leftDirects, rightDirects int) error {
	if row.LeftVolume.GreaterThan(decimal.Zero) {
		if _, err := s.Volumes.CreditMonthlyVolume(tx, row.MemberID, next, models.SideLeft, row.LeftVolume); err != nil {
			return err
		}
	}
	if row.RightVolume.GreaterThan(decimal.Zero) {
		if _, err := s.Volumes.CreditMonthlyVolume(tx, row.MemberID, next, models.SideRight, row.RightVolume); err != nil {
			return err
		}
	}

	processedAt := nowFunc()
	row.Status = status
	row.Reason = reason
	row.AssignedRankID = rankID
	row.TotalVolume = row.LeftVolume.Add(row.RightVolume)
	row.LeftDirects = leftDirects
	row.RightDirects = rightDirects
	row.ProcessedAt = &processedAt
	return tx.Save(row).Error
}
