package services

import (
	"context"
	"testing"
	"time"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newApproval(db *gorm.DB) *ApprovalService {
	nav := NewTreeNavigator()
	return NewApprovalService(db, NewVolumeService(nav), NewPointsService(), LogNotifier{})
}

func TestOnMembershipApprovedActivatesAndPaysSponsor(t *testing.T) {
	db := newTestDB(t)
	svc := newApproval(db)

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)

	plan := seedPlan(t, db, "Premium", 100, 10, 25)

	sponsor := seedMember(t, db, &models.Member{ID: uuid.NewString(), ReferralCode: "SPONSOR"})
	buyer := seedMember(t, db, &models.Member{ID: uuid.NewString(), ReferrerCode: "SPONSOR"})

	pending := &models.Membership{
		ID:       uuid.NewString(),
		MemberID: buyer.ID,
		PlanID:   plan.ID,
		Status:   models.MembershipStatusPending,
	}
	require.NoError(t, db.Create(pending).Error)

	paymentID := uuid.NewString()
	require.NoError(t, svc.OnMembershipApproved(context.Background(), pending.ID, paymentID))

	var m models.Membership
	require.NoError(t, db.First(&m, "id = ?", pending.ID).Error)
	assert.Equal(t, models.MembershipStatusActive, m.Status)
	require.NotNil(t, m.StartDate)
	require.NotNil(t, m.EndDate)
	assert.True(t, m.EndDate.Equal(now.AddDate(0, 1, 0)))

	var history models.MembershipHistory
	require.NoError(t, db.Where("membership_id = ? AND action = ?", m.ID, "ACTIVATED").First(&history).Error)

	// Sponsor got the direct bonus.
	points := NewPointsService()
	balance, err := points.GetUserPoints(db, sponsor.ID)
	require.NoError(t, err)
	assert.True(t, balance.AvailablePoints.Equal(dec(25)))

	var bonus models.PointsTransaction
	require.NoError(t, db.Where("member_id = ? AND type = ?", sponsor.ID, models.PointsTxDirectBonus).First(&bonus).Error)
}

func TestOnMembershipApprovedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newApproval(db)

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)

	plan := seedPlan(t, db, "Premium", 100, 10, 25)
	sponsor := seedMember(t, db, &models.Member{ID: uuid.NewString(), ReferralCode: "SPONSOR"})
	buyer := seedMember(t, db, &models.Member{ID: uuid.NewString(), ReferrerCode: "SPONSOR"})

	pending := &models.Membership{ID: uuid.NewString(), MemberID: buyer.ID, PlanID: plan.ID, Status: models.MembershipStatusPending}
	require.NoError(t, db.Create(pending).Error)

	paymentID := uuid.NewString()
	require.NoError(t, svc.OnMembershipApproved(context.Background(), pending.ID, paymentID))
	require.NoError(t, svc.OnMembershipApproved(context.Background(), pending.ID, paymentID))

	// The bonus was paid exactly once.
	balance, err := NewPointsService().GetUserPoints(db, sponsor.ID)
	require.NoError(t, err)
	assert.True(t, balance.AvailablePoints.Equal(dec(25)))
}

func TestOnMembershipApprovedRetiresPreviousActiveRow(t *testing.T) {
	db := newTestDB(t)
	svc := newApproval(db)

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)

	plan := seedPlan(t, db, "Premium", 100, 10, 0)
	buyer := seedMember(t, db, &models.Member{ID: uuid.NewString()})

	old := seedActiveMembership(t, db, buyer.ID, plan.ID, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	pending := &models.Membership{ID: uuid.NewString(), MemberID: buyer.ID, PlanID: plan.ID, Status: models.MembershipStatusPending}
	require.NoError(t, db.Create(pending).Error)

	require.NoError(t, svc.OnMembershipApproved(context.Background(), pending.ID, uuid.NewString()))

	var retired models.Membership
	require.NoError(t, db.First(&retired, "id = ?", old.ID).Error)
	assert.Equal(t, models.MembershipStatusInactive, retired.Status)

	var active int64
	require.NoError(t, db.Model(&models.Membership{}).
		Where("member_id = ? AND status = ?", buyer.ID, models.MembershipStatusActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestOnOrderApprovedPropagatesVolume(t *testing.T) {
	db := newTestDB(t)
	svc := newApproval(db)

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)

	plan := seedPlan(t, db, "Premium", 100, 10, 0)
	root, left, _ := seedBinaryPair(t, db, plan, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	order := &models.Order{ID: uuid.NewString(), MemberID: left.ID, TotalAmount: dec(450), Status: models.OrderStatusPending}
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, svc.OnOrderApproved(context.Background(), order.ID, uuid.NewString()))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusApproved, reloaded.Status)
	require.NotNil(t, reloaded.ApprovedAt)

	var wv models.WeeklyVolume
	require.NoError(t, db.Where("member_id = ?", root.ID).First(&wv).Error)
	assert.True(t, wv.LeftVolume.Equal(dec(450)))
}

func TestOnPlanUpgradeApprovedCreditsOnlyDelta(t *testing.T) {
	db := newTestDB(t)
	svc := newApproval(db)

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)

	basic := seedPlan(t, db, "Basic", 100, 10, 0)
	premium := seedPlan(t, db, "Premium", 300, 10, 0)
	root, left, _ := seedBinaryPair(t, db, basic, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	upgrade := &models.PlanUpgrade{
		ID:         uuid.NewString(),
		MemberID:   left.ID,
		FromPlanID: basic.ID,
		ToPlanID:   premium.ID,
		Status:     models.UpgradeStatusPending,
	}
	require.NoError(t, db.Create(upgrade).Error)

	require.NoError(t, svc.OnPlanUpgradeApproved(context.Background(), upgrade.ID, uuid.NewString()))

	// The active membership now points at the target plan.
	m, err := FindActiveMembership(db, left.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, premium.ID, m.PlanID)

	// Only 300 − 100 = 200 reached the upline.
	var wv models.WeeklyVolume
	require.NoError(t, db.Where("member_id = ?", root.ID).First(&wv).Error)
	assert.True(t, wv.LeftVolume.Equal(dec(200)))
}
