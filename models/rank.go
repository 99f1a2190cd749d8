package models

import (
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rank is an ordered catalog entry. RankOrder ascends from the lowest rank;
// RequiredPoints/RequiredDirects are the monthly qualification thresholds.
type Rank struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	Code            string          `gorm:"uniqueIndex;not null" json:"code"` // slug of Name, e.g. "bronze"
	Name            string          `gorm:"not null" json:"name"`
	RequiredPoints  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"required_points"`
	RequiredDirects int             `gorm:"default:0" json:"required_directs"`
	RankOrder       int             `gorm:"not null" json:"rank_order"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`

	Timestamps
}

func (r *Rank) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Code == "" {
		r.Code = slug.Make(r.Name)
	}
	return nil
}

// UserRank is the per-member rank pointer. CurrentRank moves freely with each
// monthly cut; HighestRank never regresses.
type UserRank struct {
	ID            string  `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID      string  `gorm:"uniqueIndex;not null;type:uuid" json:"member_id"`
	CurrentRankID *string `gorm:"type:uuid" json:"current_rank_id,omitempty"`
	HighestRankID *string `gorm:"type:uuid" json:"highest_rank_id,omitempty"`

	CurrentRank *Rank `gorm:"foreignKey:CurrentRankID" json:"current_rank,omitempty"`
	HighestRank *Rank `gorm:"foreignKey:HighestRankID" json:"highest_rank,omitempty"`

	Timestamps
}
