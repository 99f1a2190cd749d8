package services

import (
	"testing"
	"time"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Keep the in-memory database on a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.Plan{},
		&models.PlanUpgrade{},
		&models.Membership{},
		&models.MembershipHistory{},
		&models.MembershipReconsumption{},
		&models.WeeklyVolume{},
		&models.WeeklyVolumeHistory{},
		&models.MonthlyVolumeRank{},
		&models.Rank{},
		&models.UserRank{},
		&models.UserPoints{},
		&models.PointsTransaction{},
		&models.Order{},
		&models.Payment{},
		&models.CutExecution{},
	))

	return db
}

// pinTime freezes the service clock for the duration of the test.
func pinTime(t *testing.T, at time.Time) {
	t.Helper()
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = time.Now })
}

func strPtr(s string) *string { return &s }

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func seedMember(t *testing.T, db *gorm.DB, m *models.Member) *models.Member {
	t.Helper()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ReferralCode == "" {
		m.ReferralCode = "REF-" + m.ID[:8]
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func seedPlan(t *testing.T, db *gorm.DB, name string, binaryPoints, commissionPct, directBonus int64) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:                   name,
		Price:                  dec(binaryPoints),
		BinaryPoints:           dec(binaryPoints),
		CommissionPercentage:   dec(commissionPct),
		DirectCommissionAmount: dec(directBonus),
		IsActive:               true,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func seedActiveMembership(t *testing.T, db *gorm.DB, memberID, planID string, start, end time.Time) *models.Membership {
	t.Helper()
	m := &models.Membership{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		PlanID:    planID,
		Status:    models.MembershipStatusActive,
		StartDate: &start,
		EndDate:   &end,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// seedRankCatalog installs a three-tier catalog used across the cut tests.
func seedRankCatalog(t *testing.T, db *gorm.DB) (bronze, silver, gold *models.Rank) {
	t.Helper()
	bronze = &models.Rank{Name: "Bronze", RequiredPoints: dec(0), RequiredDirects: 0, RankOrder: 1, IsActive: true}
	silver = &models.Rank{Name: "Silver", RequiredPoints: dec(1000), RequiredDirects: 2, RankOrder: 2, IsActive: true}
	gold = &models.Rank{Name: "Gold", RequiredPoints: dec(5000), RequiredDirects: 4, RankOrder: 3, IsActive: true}
	for _, r := range []*models.Rank{bronze, silver, gold} {
		require.NoError(t, db.Create(r).Error)
	}
	return bronze, silver, gold
}

// seedBinaryPair builds the smallest qualifying structure: a root with one
// member on each leg, both sponsored by the root and both actively subscribed.
func seedBinaryPair(t *testing.T, db *gorm.DB, plan *models.Plan, start, end time.Time) (root, left, right *models.Member) {
	t.Helper()

	rootID := uuid.NewString()
	leftID := uuid.NewString()
	rightID := uuid.NewString()

	root = seedMember(t, db, &models.Member{
		ID:           rootID,
		LeftChildID:  &leftID,
		RightChildID: &rightID,
		ReferralCode: "ROOT-" + rootID[:8],
	})
	left = seedMember(t, db, &models.Member{
		ID:           leftID,
		ParentID:     &rootID,
		Position:     models.SideLeft,
		ReferrerCode: root.ReferralCode,
	})
	right = seedMember(t, db, &models.Member{
		ID:           rightID,
		ParentID:     &rootID,
		Position:     models.SideRight,
		ReferrerCode: root.ReferralCode,
	})

	seedActiveMembership(t, db, root.ID, plan.ID, start, end)
	seedActiveMembership(t, db, left.ID, plan.ID, start, end)
	seedActiveMembership(t, db, right.ID, plan.ID, start, end)

	return root, left, right
}
