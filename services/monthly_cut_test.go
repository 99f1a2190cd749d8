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

func newMonthlyCut(db *gorm.DB) *MonthlyCutService {
	nav := NewTreeNavigator()
	return NewMonthlyCutService(db, nav, NewVolumeService(nav), NewRankService(), LogNotifier{}, nil)
}

func seedMonthlyRow(t *testing.T, db *gorm.DB, memberID string, month Period, left, right int64) *models.MonthlyVolumeRank {
	t.Helper()
	row := &models.MonthlyVolumeRank{
		ID:             uuid.NewString(),
		MemberID:       memberID,
		MonthStartDate: month.Start,
		MonthEndDate:   month.End,
		LeftVolume:     dec(left),
		RightVolume:    dec(right),
		TotalVolume:    dec(left + right),
		Status:         models.VolumeStatusPending,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestMonthlyCutAssignsRankByVolumeAndDirects(t *testing.T) {
	db := newTestDB(t)
	svc := newMonthlyCut(db)

	now := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)
	_, silver, gold := seedRankCatalog(t, db)

	plan := seedPlan(t, db, "Premium", 100, 10, 0)
	root, _, _ := seedBinaryPair(t, db, plan, now.AddDate(0, -2, 0), now.AddDate(0, 1, 0))

	month := PreviousMonth(now)
	// 6000 total clears Gold's points, but only two directs: Silver it is.
	row := seedMonthlyRow(t, db, root.ID, month, 4000, 2000)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Successful)

	var settled models.MonthlyVolumeRank
	require.NoError(t, db.First(&settled, "id = ?", row.ID).Error)
	assert.Equal(t, models.VolumeStatusProcessed, settled.Status)
	require.NotNil(t, settled.AssignedRankID)
	assert.Equal(t, silver.ID, *settled.AssignedRankID)
	assert.Equal(t, 1, settled.LeftDirects)
	assert.Equal(t, 1, settled.RightDirects)

	var ur models.UserRank
	require.NoError(t, db.Where("member_id = ?", root.ID).First(&ur).Error)
	assert.Equal(t, silver.ID, *ur.CurrentRankID)
	assert.Equal(t, silver.ID, *ur.HighestRankID)
	assert.NotEqual(t, gold.ID, *ur.HighestRankID)

	// Volumes carry side-for-side into the current month.
	var next models.MonthlyVolumeRank
	require.NoError(t, db.Where(
		"member_id = ? AND month_start_date = ? AND status = ?",
		root.ID, MonthOf(now).Start, models.VolumeStatusPending,
	).First(&next).Error)
	assert.True(t, next.LeftVolume.Equal(dec(4000)))
	assert.True(t, next.RightVolume.Equal(dec(2000)))
	assert.True(t, next.TotalVolume.Equal(dec(6000)))
}

func TestMonthlyCutHighestRankNeverRegresses(t *testing.T) {
	db := newTestDB(t)
	svc := newMonthlyCut(db)

	now := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)
	_, silver, gold := seedRankCatalog(t, db)

	plan := seedPlan(t, db, "Premium", 100, 10, 0)
	root, _, _ := seedBinaryPair(t, db, plan, now.AddDate(0, -2, 0), now.AddDate(0, 1, 0))

	// The member peaked at Gold in some earlier month.
	require.NoError(t, db.Create(&models.UserRank{
		ID:            uuid.NewString(),
		MemberID:      root.ID,
		CurrentRankID: &gold.ID,
		HighestRankID: &gold.ID,
	}).Error)

	seedMonthlyRow(t, db, root.ID, PreviousMonth(now), 1000, 500)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	var ur models.UserRank
	require.NoError(t, db.Where("member_id = ?", root.ID).First(&ur).Error)
	assert.Equal(t, silver.ID, *ur.CurrentRankID, "current rank follows this month's volume")
	assert.Equal(t, gold.ID, *ur.HighestRankID, "highest rank must not regress")
}

func TestMonthlyCutDisqualifiedMemberStillCarriesVolume(t *testing.T) {
	db := newTestDB(t)
	svc := newMonthlyCut(db)

	now := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	pinTime(t, now)
	bronze, _, _ := seedRankCatalog(t, db)

	// No membership, no legs.
	member := seedMember(t, db, &models.Member{ID: uuid.NewString()})
	row := seedMonthlyRow(t, db, member.ID, PreviousMonth(now), 2500, 1500)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	var settled models.MonthlyVolumeRank
	require.NoError(t, db.First(&settled, "id = ?", row.ID).Error)
	assert.Equal(t, models.VolumeStatusCancelled, settled.Status)
	assert.Equal(t, "no active membership", settled.Reason)
	require.NotNil(t, settled.AssignedRankID)
	assert.Equal(t, bronze.ID, *settled.AssignedRankID)

	// Unlike the weekly cut, monthly volume always carries forward untouched.
	var next models.MonthlyVolumeRank
	require.NoError(t, db.Where(
		"member_id = ? AND month_start_date = ?", member.ID, MonthOf(now).Start,
	).First(&next).Error)
	assert.True(t, next.LeftVolume.Equal(dec(2500)))
	assert.True(t, next.RightVolume.Equal(dec(1500)))
}

func TestRankForVolumeFallsBackToLowest(t *testing.T) {
	db := newTestDB(t)
	ranks := NewRankService()
	bronze, silver, gold := seedRankCatalog(t, db)

	r, err := ranks.RankForVolume(db, dec(100), 0)
	require.NoError(t, err)
	assert.Equal(t, bronze.ID, r.ID)

	r, err = ranks.RankForVolume(db, dec(1200), 2)
	require.NoError(t, err)
	assert.Equal(t, silver.ID, r.ID)

	// Enough points for Gold but not enough directs.
	r, err = ranks.RankForVolume(db, dec(9000), 3)
	require.NoError(t, err)
	assert.Equal(t, silver.ID, r.ID)

	r, err = ranks.RankForVolume(db, dec(9000), 4)
	require.NoError(t, err)
	assert.Equal(t, gold.ID, r.ID)
}
