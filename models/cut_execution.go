package models

import "time"

type CutCode string

const (
	CutWeeklyVolume  CutCode = "WEEKLY_VOLUME_CUT"
	CutMonthlyVolume CutCode = "MONTHLY_VOLUME_CUT"
	CutReconsumption CutCode = "RECONSUMPTION_CUT"
)

// CutExecution is the run log for every scheduled or manual cut invocation.
// Together with the per-cut in-process lock it guards against overlapping runs.
type CutExecution struct {
	ID   string  `gorm:"primaryKey;type:uuid" json:"id"`
	Code CutCode `gorm:"type:varchar(32);not null;index" json:"code"`

	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Success    bool       `gorm:"default:false" json:"success"`

	Processed  int    `gorm:"default:0" json:"processed"`
	Successful int    `gorm:"default:0" json:"successful"`
	Failed     int    `gorm:"default:0" json:"failed"`
	Error      string `gorm:"type:text" json:"error,omitempty"`
	Trigger    string `gorm:"type:varchar(16);default:'SCHEDULED'" json:"trigger"` // SCHEDULED or MANUAL

	Timestamps
}
