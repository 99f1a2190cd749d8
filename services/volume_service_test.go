package services

import (
	"testing"
	"time"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditTreeVolumeAccumulatesIntoSingleRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewVolumeService(NewTreeNavigator())

	now := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC) // Wednesday
	pinTime(t, now)

	plan := seedPlan(t, db, "Premium", 100, 10, 0)
	start := now.AddDate(0, -1, 0)
	root, left, _ := seedBinaryPair(t, db, plan, start, now.AddDate(0, 1, 0))

	event := VolumeEvent{
		Kind:      VolumeEventMembershipPurchase,
		Member:    left,
		Amount:    dec(100),
		PaymentID: uuid.NewString(),
	}
	outcomes, err := svc.CreditTreeVolume(db, event)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Credited)
	assert.Equal(t, root.ID, outcomes[0].MemberID)
	assert.Equal(t, models.SideLeft, outcomes[0].Side)

	// A second credit lands on the same PENDING row.
	event.Amount = dec(250)
	event.PaymentID = uuid.NewString()
	_, err = svc.CreditTreeVolume(db, event)
	require.NoError(t, err)

	var rows []models.WeeklyVolume
	require.NoError(t, db.Where("member_id = ?", root.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].LeftVolume.Equal(dec(350)))
	assert.True(t, rows[0].RightVolume.Equal(dec(0)))
	assert.True(t, rows[0].WeekStartDate.Equal(WeekOf(now).Start))

	var monthly []models.MonthlyVolumeRank
	require.NoError(t, db.Where("member_id = ?", root.ID).Find(&monthly).Error)
	require.Len(t, monthly, 1)
	assert.True(t, monthly[0].LeftVolume.Equal(dec(350)))
	assert.True(t, monthly[0].TotalVolume.Equal(dec(350)))

	// Every credit leaves a reconciliation record.
	var history []models.WeeklyVolumeHistory
	require.NoError(t, db.Where("weekly_volume_id = ?", rows[0].ID).Find(&history).Error)
	assert.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, models.SideLeft, h.Side)
		assert.Equal(t, string(VolumeEventMembershipPurchase), h.Source)
		assert.Nil(t, h.PointsTransactionID)
	}
}

func TestCreditTreeVolumeSkipsUnqualifiedAncestors(t *testing.T) {
	db := newTestDB(t)
	svc := NewVolumeService(NewTreeNavigator())

	now := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	pinTime(t, now)

	childID := uuid.NewString()

	// No membership at all.
	bare := seedMember(t, db, &models.Member{ID: uuid.NewString(), LeftChildID: &childID})
	child := seedMember(t, db, &models.Member{ID: childID, ParentID: &bare.ID, Position: models.SideLeft})

	outcomes, err := svc.CreditTreeVolume(db, VolumeEvent{
		Kind:   VolumeEventOrderPayment,
		Member: child,
		Amount: dec(500),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Credited)
	assert.Equal(t, "no active membership", outcomes[0].Reason)

	// A plan without binary commission is skipped too.
	freePlan := seedPlan(t, db, "Starter", 0, 0, 0)
	seedActiveMembership(t, db, bare.ID, freePlan.ID, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	outcomes, err = svc.CreditTreeVolume(db, VolumeEvent{
		Kind:   VolumeEventOrderPayment,
		Member: child,
		Amount: dec(500),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Credited)
	assert.Equal(t, "plan has no binary commission", outcomes[0].Reason)

	var count int64
	require.NoError(t, db.Model(&models.WeeklyVolume{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreditTreeVolumeIgnoresNonPositiveAmounts(t *testing.T) {
	db := newTestDB(t)
	svc := NewVolumeService(NewTreeNavigator())

	outcomes, err := svc.CreditTreeVolume(db, VolumeEvent{
		Kind:   VolumeEventPlanUpgrade,
		Member: &models.Member{ID: uuid.NewString()},
		Amount: dec(0),
	})
	require.NoError(t, err)
	assert.Nil(t, outcomes)
}

func TestCreditWeeklyVolumeAccumulatesPerSide(t *testing.T) {
	db := newTestDB(t)
	svc := NewVolumeService(NewTreeNavigator())

	memberID := uuid.NewString()
	week := WeekOf(time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC))

	first, err := svc.CreditWeeklyVolume(db, memberID, week, models.SideLeft, dec(100))
	require.NoError(t, err)
	second, err := svc.CreditWeeklyVolume(db, memberID, week, models.SideRight, dec(40))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	third, err := svc.CreditWeeklyVolume(db, memberID, week, models.SideRight, dec(60))
	require.NoError(t, err)
	assert.True(t, third.LeftVolume.Equal(dec(100)))
	assert.True(t, third.RightVolume.Equal(dec(100)))
	assert.Equal(t, models.VolumeStatusPending, third.Status)
}
