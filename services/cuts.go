package services

import (
	"time"

	"binary-plan-engine/models"

	"github.com/shopspring/decimal"
)

// RecordStatus is the terminal state of one ledger row (or membership) inside
// a batch run.
type RecordStatus string

const (
	RecordProcessed RecordStatus = "PROCESSED"
	RecordCancelled RecordStatus = "CANCELLED"
	RecordFailed    RecordStatus = "FAILED"
	RecordSkipped   RecordStatus = "SKIPPED"
)

// RecordOutcome is the typed per-record result of a cut. The Reason makes the
// partial-failure contract testable: a skipped or cancelled record always says
// why.
type RecordOutcome struct {
	MemberID string          `json:"member_id"`
	Status   RecordStatus    `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Paid     decimal.Decimal `json:"paid"`
}

// CutSummary is the structured result of one batch invocation. Expected
// business failures live in the counts; only structural failures surface as
// errors.
type CutSummary struct {
	Code        models.CutCode  `json:"code"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Processed   int             `json:"processed"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	TotalVolume decimal.Decimal `json:"total_volume"`
	Records     []RecordOutcome `json:"records,omitempty"`
}

func (s *CutSummary) add(o RecordOutcome) {
	s.Processed++
	switch o.Status {
	case RecordProcessed:
		s.Successful++
		s.TotalPaid = s.TotalPaid.Add(o.Paid)
	case RecordCancelled, RecordFailed:
		s.Failed++
	}
	s.Records = append(s.Records, o)
}
