package models

import (
	"time"

	"gorm.io/gorm"
)

// Side identifies one of the two legs under a member in the binary tree.
type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// Member is a local mirror of a binary-tree node from the user directory.
// Tree placement (parent/left/right) and sponsorship (referral codes) are
// independent relations: a member can sponsor someone placed anywhere below.
// Populated via workers.MemberSyncWorker; the settlement engine never creates
// members itself.
type Member struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	ParentID     *string `gorm:"index;type:uuid" json:"parent_id,omitempty"`
	LeftChildID  *string `gorm:"type:uuid" json:"left_child_id,omitempty"`
	RightChildID *string `gorm:"type:uuid" json:"right_child_id,omitempty"`
	Position     Side    `gorm:"type:varchar(8)" json:"position"`

	ReferralCode string `gorm:"uniqueIndex;not null" json:"referral_code"` // own code
	ReferrerCode string `gorm:"index" json:"referrer_code"`                // sponsor's code

	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
