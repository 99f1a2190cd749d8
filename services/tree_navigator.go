package services

import (
	"errors"
	"log"

	"binary-plan-engine/models"

	"gorm.io/gorm"
)

// maxTreeDepth bounds every traversal. The tree is acyclic by construction,
// but a corrupted parent pointer must not hang a cut run.
const maxTreeDepth = 1000

// TreeNavigator answers structural questions about the binary tree: which leg
// a descendant sits under, who a member's ancestors are, and whether a leg
// contains active direct sponsees. It only reads the Member mirror and the
// Membership table; it never mutates anything.
type TreeNavigator struct{}

func NewTreeNavigator() *TreeNavigator {
	return &TreeNavigator{}
}

// AncestorsOf walks ParentID up to the root, nearest ancestor first.
// Unbounded on purpose — commission propagation must reach the entire upline.
func (n *TreeNavigator) AncestorsOf(tx *gorm.DB, memberID string) ([]models.Member, error) {
	var ancestors []models.Member
	visited := map[string]bool{memberID: true}

	var current models.Member
	if err := tx.First(&current, "id = ?", memberID).Error; err != nil {
		return nil, err
	}

	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= maxTreeDepth {
			return nil, ErrTreeDepthExceeded
		}
		if visited[*current.ParentID] {
			log.Printf("⚠️ [TREE] cycle detected walking ancestors of %s at %s", memberID, *current.ParentID)
			return nil, ErrTreeDepthExceeded
		}

		var parent models.Member
		if err := tx.First(&parent, "id = ?", *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Dangling parent pointer: treat the walk as finished.
				log.Printf("⚠️ [TREE] parent %s of %s not found", *current.ParentID, current.ID)
				break
			}
			return nil, err
		}

		visited[parent.ID] = true
		ancestors = append(ancestors, parent)
		current = parent
	}

	return ancestors, nil
}

// SideOf reports which of the ancestor's legs contains the descendant.
// Returns ("", false) when the two members are unrelated — callers skip the
// ancestor, this is not an error.
func (n *TreeNavigator) SideOf(tx *gorm.DB, ancestor *models.Member, descendantID string) (models.Side, bool, error) {
	// Direct-child shortcut.
	if ancestor.LeftChildID != nil && *ancestor.LeftChildID == descendantID {
		return models.SideLeft, true, nil
	}
	if ancestor.RightChildID != nil && *ancestor.RightChildID == descendantID {
		return models.SideRight, true, nil
	}

	for _, side := range []models.Side{models.SideLeft, models.SideRight} {
		rootID := ancestor.LeftChildID
		if side == models.SideRight {
			rootID = ancestor.RightChildID
		}
		if rootID == nil {
			continue
		}
		found, err := n.subtreeContains(tx, *rootID, descendantID)
		if err != nil {
			return "", false, err
		}
		if found {
			return side, true, nil
		}
	}

	return "", false, nil
}

// LegActivity counts the member's direct sponsees sitting anywhere under the
// given leg that hold an ACTIVE membership. Both cuts use this as the
// leg-qualification check.
func (n *TreeNavigator) LegActivity(tx *gorm.DB, member *models.Member, side models.Side) (int, bool, error) {
	rootID := member.LeftChildID
	if side == models.SideRight {
		rootID = member.RightChildID
	}
	if rootID == nil {
		return 0, false, nil
	}

	ids, err := n.descendantIDs(tx, *rootID)
	if err != nil {
		return 0, false, err
	}

	var count int64
	err = tx.Model(&models.Membership{}).
		Joins("JOIN members ON members.id = memberships.member_id").
		Where("memberships.member_id IN ?", ids).
		Where("members.referrer_code = ?", member.ReferralCode).
		Where("memberships.status = ?", models.MembershipStatusActive).
		Distinct("memberships.member_id").
		Count(&count).Error
	if err != nil {
		return 0, false, err
	}

	return int(count), count > 0, nil
}

// CountActiveDirects counts the member's direct sponsees with an ACTIVE
// membership regardless of tree placement. This drives the weekly volume cap
// tiers and the monthly rank requirement.
func (n *TreeNavigator) CountActiveDirects(tx *gorm.DB, member *models.Member) (int, error) {
	var count int64
	err := tx.Model(&models.Membership{}).
		Joins("JOIN members ON members.id = memberships.member_id").
		Where("members.referrer_code = ?", member.ReferralCode).
		Where("memberships.status = ?", models.MembershipStatusActive).
		Distinct("memberships.member_id").
		Count(&count).Error
	return int(count), err
}

// subtreeContains runs a BFS over child pointers from rootID looking for
// targetID, with a visited set and the depth guard.
func (n *TreeNavigator) subtreeContains(tx *gorm.DB, rootID, targetID string) (bool, error) {
	if rootID == targetID {
		return true, nil
	}
	ids, err := n.descendantIDs(tx, rootID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == targetID {
			return true, nil
		}
	}
	return false, nil
}

// descendantIDs returns rootID plus every member below it, BFS order.
func (n *TreeNavigator) descendantIDs(tx *gorm.DB, rootID string) ([]string, error) {
	visited := map[string]bool{rootID: true}
	result := []string{rootID}
	frontier := []string{rootID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxTreeDepth {
			return nil, ErrTreeDepthExceeded
		}

		var children []models.Member
		if err := tx.Select("id").Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, c := range children {
			if visited[c.ID] {
				log.Printf("⚠️ [TREE] cycle detected under %s at %s", rootID, c.ID)
				continue
			}
			visited[c.ID] = true
			result = append(result, c.ID)
			frontier = append(frontier, c.ID)
		}
	}

	return result, nil
}

// FindActiveMembership returns the member's ACTIVE membership with its plan,
// or nil when there is none.
func FindActiveMembership(tx *gorm.DB, memberID string) (*models.Membership, error) {
	var m models.Membership
	err := tx.Preload("Plan").
		Where("member_id = ? AND status = ?", memberID, models.MembershipStatusActive).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
