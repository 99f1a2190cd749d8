package services

import (
	"errors"
	"fmt"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RankService owns the rank catalog and the per-member rank pointers.
type RankService struct{}

func NewRankService() *RankService {
	return &RankService{}
}

// LowestRank returns the bottom of the active catalog. Disqualified members
// fall back to it on every cut.
func (s *RankService) LowestRank(tx *gorm.DB) (*models.Rank, error) {
	var rank models.Rank
	err := tx.Where("is_active = ?", true).Order("rank_order ASC").First(&rank).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("rank catalog is empty")
	}
	if err != nil {
		return nil, err
	}
	return &rank, nil
}

// RankForVolume scans the active catalog from the highest RequiredPoints down
// and returns the first rank the volume and direct count both satisfy,
// falling back to the lowest rank when none do.
func (s *RankService) RankForVolume(tx *gorm.DB, totalVolume decimal.Decimal, totalDirects int) (*models.Rank, error) {
	var ranks []models.Rank
	if err := tx.Where("is_active = ?", true).Order("required_points DESC").Find(&ranks).Error; err != nil {
		return nil, err
	}
	for i := range ranks {
		r := &ranks[i]
		if r.RequiredPoints.LessThanOrEqual(totalVolume) && r.RequiredDirects <= totalDirects {
			return r, nil
		}
	}
	return s.LowestRank(tx)
}

// AssignRank updates the member's CurrentRank and, only when the new rank's
// RequiredPoints exceed the stored highest, the HighestRank pointer. The
// highest rank never regresses. Returns true when the highest rank advanced.
func (s *RankService) AssignRank(tx *gorm.DB, memberID string, rank *models.Rank) (bool, error) {
	var ur models.UserRank
	err := tx.Where("member_id = ?", memberID).First(&ur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ur = models.UserRank{
			ID:            uuid.NewString(),
			MemberID:      memberID,
			CurrentRankID: &rank.ID,
			HighestRankID: &rank.ID,
		}
		return true, tx.Create(&ur).Error
	}
	if err != nil {
		return false, err
	}

	ur.CurrentRankID = &rank.ID

	advanced := false
	if ur.HighestRankID == nil {
		ur.HighestRankID = &rank.ID
		advanced = true
	} else {
		var highest models.Rank
		if err := tx.First(&highest, "id = ?", *ur.HighestRankID).Error; err != nil {
			return false, err
		}
		if rank.RequiredPoints.GreaterThan(highest.RequiredPoints) {
			ur.HighestRankID = &rank.ID
			advanced = true
		}
	}

	return advanced, tx.Save(&ur).Error
}
