package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"binary-plan-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PointsService owns the points ledger: the append-only transaction log and
// the per-member balance cache. Nothing else writes UserPoints.
type PointsService struct{}

func NewPointsService() *PointsService {
	return &PointsService{}
}

// ConsumedPortion records how much of one earning transaction a FIFO
// withdrawal used.
type ConsumedPortion struct {
	TransactionID string          `json:"transaction_id"`
	AmountUsed    decimal.Decimal `json:"amount_used"`
}

// CreditPoints increments the member's balance cache and appends a COMPLETED
// earning transaction. The UserPoints row is created on first credit.
func (s *PointsService) CreditPoints(tx *gorm.DB, memberID string, amount decimal.Decimal, txType models.PointsTransactionType, metadata map[string]interface{}) (*models.PointsTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	points, err := s.ensureUserPoints(tx, memberID)
	if err != nil {
		return nil, err
	}

	points.AvailablePoints = points.AvailablePoints.Add(amount)
	points.TotalEarnedPoints = points.TotalEarnedPoints.Add(amount)
	if err := tx.Save(points).Error; err != nil {
		return nil, err
	}

	ptx := &models.PointsTransaction{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Type:     txType,
		Amount:   amount,
		Status:   models.PointsTxStatusCompleted,
		Metadata: marshalMetadata(metadata),
	}
	if err := tx.Create(ptx).Error; err != nil {
		return nil, err
	}
	return ptx, nil
}

// ConsumePointsFIFO withdraws amount from the member's balance by draining the
// oldest eligible earning transactions first. Each transaction's
// WithdrawnAmount grows by exactly the portion taken from it and never exceeds
// its Amount. Returns the WITHDRAWAL transaction recording the breakdown.
//
// An insufficient balance is a validation outcome (ErrInsufficientPoints), not
// a structural failure.
func (s *PointsService) ConsumePointsFIFO(tx *gorm.DB, memberID string, amount decimal.Decimal, metadata map[string]interface{}) (*models.PointsTransaction, []ConsumedPortion, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("withdrawal amount must be positive, got %s", amount)
	}

	points, err := s.ensureUserPoints(tx, memberID)
	if err != nil {
		return nil, nil, err
	}
	if points.AvailablePoints.LessThan(amount) {
		return nil, nil, ErrInsufficientPoints
	}

	var earnings []models.PointsTransaction
	err = tx.Where("member_id = ? AND status = ? AND type IN ?",
		memberID,
		models.PointsTxStatusCompleted,
		[]models.PointsTransactionType{models.PointsTxBinaryCommission, models.PointsTxDirectBonus},
	).Order("created_at ASC").Find(&earnings).Error
	if err != nil {
		return nil, nil, err
	}

	remaining := amount
	var consumed []ConsumedPortion
	for i := range earnings {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		e := &earnings[i]
		available := e.Amount.Sub(e.WithdrawnAmount)
		if available.LessThanOrEqual(decimal.Zero) {
			continue // exhausted, skip
		}
		use := decimal.Min(available, remaining)
		e.WithdrawnAmount = e.WithdrawnAmount.Add(use)
		if err := tx.Save(e).Error; err != nil {
			return nil, nil, err
		}
		consumed = append(consumed, ConsumedPortion{TransactionID: e.ID, AmountUsed: use})
		remaining = remaining.Sub(use)
	}

	if remaining.GreaterThan(decimal.Zero) {
		// Balance cache said yes but the log disagrees: the invariant is broken.
		return nil, nil, fmt.Errorf("points ledger inconsistency for member %s: %s not covered by transactions", memberID, remaining)
	}

	points.AvailablePoints = points.AvailablePoints.Sub(amount)
	points.TotalWithdrawnPoints = points.TotalWithdrawnPoints.Add(amount)
	if err := tx.Save(points).Error; err != nil {
		return nil, nil, err
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["consumed"] = consumed

	wtx := &models.PointsTransaction{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Type:     models.PointsTxWithdrawal,
		Amount:   amount,
		Status:   models.PointsTxStatusCompleted,
		Metadata: marshalMetadata(metadata),
	}
	if err := tx.Create(wtx).Error; err != nil {
		return nil, nil, err
	}
	return wtx, consumed, nil
}

// GetUserPoints returns the balance cache row, or a zeroed one when the member
// has never earned.
func (s *PointsService) GetUserPoints(tx *gorm.DB, memberID string) (*models.UserPoints, error) {
	var points models.UserPoints
	err := tx.Where("member_id = ?", memberID).First(&points).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserPoints{MemberID: memberID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &points, nil
}

func (s *PointsService) ensureUserPoints(tx *gorm.DB, memberID string) (*models.UserPoints, error) {
	var points models.UserPoints
	err := tx.Where("member_id = ?", memberID).First(&points).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		points = models.UserPoints{
			ID:       uuid.NewString(),
			MemberID: memberID,
		}
		if err := tx.Create(&points).Error; err != nil {
			return nil, err
		}
		return &points, nil
	}
	if err != nil {
		return nil, err
	}
	return &points, nil
}

func marshalMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return "{}"
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Sprintf(`{"marshal_error":%q}`, err.Error())
	}
	return string(b)
}
