// services/scheduler.go
package services

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"binary-plan-engine/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SchedulerService triggers the three cuts on their calendars and funnels
// manual triggers through the same path. A per-cut try-lock guarantees two
// runs of the same cut never overlap, even when a run overruns its window;
// every invocation leaves a CutExecution audit row.
type SchedulerService struct {
	DB            *gorm.DB
	Weekly        *WeeklyCutService
	Monthly       *MonthlyCutService
	Reconsumption *ReconsumptionService

	locks map[models.CutCode]*sync.Mutex
	sched gocron.Scheduler
}

func NewSchedulerService(db *gorm.DB, weekly *WeeklyCutService, monthly *MonthlyCutService, reconsumption *ReconsumptionService) *SchedulerService {
	return &SchedulerService{
		DB:            db,
		Weekly:        weekly,
		Monthly:       monthly,
		Reconsumption: reconsumption,
		locks: map[models.CutCode]*sync.Mutex{
			models.CutWeeklyVolume:  {},
			models.CutMonthlyVolume: {},
			models.CutReconsumption: {},
		},
	}
}

// RunCut executes one cut by code. Returns ErrCutAlreadyRunning when a run of
// the same cut is still in flight.
func (s *SchedulerService) RunCut(ctx context.Context, code models.CutCode, trigger string) (*CutSummary, error) {
	lock, ok := s.locks[code]
	if !ok {
		return nil, ErrUnknownCutCode
	}
	if !lock.TryLock() {
		return nil, ErrCutAlreadyRunning
	}
	defer lock.Unlock()

	exec := models.CutExecution{
		ID:        uuid.NewString(),
		Code:      code,
		StartedAt: nowFunc(),
		Trigger:   trigger,
	}
	if err := s.DB.Create(&exec).Error; err != nil {
		return nil, err
	}

	var summary *CutSummary
	var err error
	switch code {
	case models.CutWeeklyVolume:
		summary, err = s.Weekly.Run(ctx)
	case models.CutMonthlyVolume:
		summary, err = s.Monthly.Run(ctx)
	case models.CutReconsumption:
		summary, err = s.Reconsumption.Run(ctx)
	}

	finished := nowFunc()
	exec.FinishedAt = &finished
	if err != nil {
		exec.Error = err.Error()
	} else {
		exec.Success = true
		exec.Processed = summary.Processed
		exec.Successful = summary.Successful
		exec.Failed = summary.Failed
	}
	if saveErr := s.DB.Save(&exec).Error; saveErr != nil {
		log.Printf("⚠️ [SCHEDULER] failed to update execution row for %s: %v", code, saveErr)
	}

	return summary, err
}

// Start registers the cron jobs and starts the scheduler. Calendars and
// timezone come from the environment with sensible defaults.
func (s *SchedulerService) Start(ctx context.Context) error {
	tz := os.Getenv("CUT_TIMEZONE")
	if tz == "" {
		tz = "America/Lima"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return err
	}
	s.sched = sched

	jobs := []struct {
		code       models.CutCode
		envVar     string
		defaultExp string
	}{
		{models.CutWeeklyVolume, "WEEKLY_CUT_CRON", "30 0 * * 1"},
		{models.CutMonthlyVolume, "MONTHLY_CUT_CRON", "0 1 1 * *"},
		{models.CutReconsumption, "RECONSUMPTION_CUT_CRON", "0 2 * * *"},
	}

	for _, j := range jobs {
		exp := os.Getenv(j.envVar)
		if exp == "" {
			exp = j.defaultExp
		}
		code := j.code
		_, err := sched.NewJob(
			gocron.CronJob(exp, false),
			gocron.NewTask(func() {
				summary, err := s.RunCut(ctx, code, "SCHEDULED")
				if err != nil {
					log.Printf("❌ [SCHEDULER] %s run failed: %v", code, err)
					return
				}
				log.Printf("✅ [SCHEDULER] %s done: processed=%d successful=%d failed=%d",
					code, summary.Processed, summary.Successful, summary.Failed)
			}),
		)
		if err != nil {
			return err
		}
		log.Printf("⏰ [SCHEDULER] %s scheduled (%s, %s)", code, exp, tz)
	}

	sched.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *SchedulerService) Stop() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			log.Printf("⚠️ [SCHEDULER] shutdown: %v", err)
		}
	}
}
