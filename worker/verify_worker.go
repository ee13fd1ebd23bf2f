package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mailprobe/config"
	"mailprobe/models"
	"mailprobe/verifier"
)

// VerifyWorker drains pending upload jobs. Jobs keep their input address
// list in the database, so work interrupted by a restart is picked up
// again on the next tick.
type VerifyWorker struct {
	DB       *gorm.DB
	Verifier *verifier.Verifier
	Logger   logrus.FieldLogger
}

func NewVerifyWorker(db *gorm.DB, v *verifier.Verifier, logger logrus.FieldLogger) *VerifyWorker {
	return &VerifyWorker{
		DB:       db,
		Verifier: v,
		Logger:   logger,
	}
}

func (vw *VerifyWorker) Start(ctx context.Context) {
	vw.Logger.Info("verify worker started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			vw.Logger.Info("verify worker shutting down")
			return
		case <-ticker.C:
			vw.processPendingJobs(ctx)
		}
	}
}

func (vw *VerifyWorker) processPendingJobs(ctx context.Context) {
	var jobs []models.ValidationJob
	if err := vw.DB.Where("status = ?", "pending").Order("id ASC").Limit(5).Find(&jobs).Error; err != nil {
		vw.Logger.WithError(err).Error("failed to fetch pending jobs")
		return
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := vw.runJob(ctx, &jobs[i]); err != nil {
			vw.Logger.WithError(err).WithField("job", jobs[i].PublicID).Error("job failed")
			sentry.CaptureException(err)
			vw.failJob(&jobs[i], err.Error())
		}
	}
}

// runJob claims one job, streams results into the database as they
// complete and finalizes the counters.
func (vw *VerifyWorker) runJob(ctx context.Context, job *models.ValidationJob) error {
	now := time.Now()
	claimed := vw.DB.Model(job).
		Where("status = ?", "pending").
		Updates(map[string]interface{}{"status": "processing", "started_at": now})
	if claimed.Error != nil {
		return claimed.Error
	}
	if claimed.RowsAffected == 0 {
		return nil // another instance took it
	}

	// A requeued job may carry partial results from an interrupted run.
	vw.DB.Where("job_id = ?", job.ID).Delete(&models.ValidationRecord{})
	job.ProcessedCount = 0
	job.DeliverableCount = 0
	job.UndeliverableCount = 0
	job.UnknownCount = 0
	job.InvalidCount = 0

	concurrency := job.Concurrency
	if concurrency <= 0 {
		concurrency = config.AppConfig.Verifier.Concurrency
	}

	emails := job.InputEmails()
	vw.Logger.WithFields(logrus.Fields{
		"job":         job.PublicID,
		"addresses":   len(emails),
		"concurrency": concurrency,
	}).Info("processing upload job")

	ch, err := vw.Verifier.CheckMany(ctx, emails, concurrency)
	if err != nil {
		return err
	}

	for res := range ch {
		record := models.NewValidationRecord(job.UserID, &job.ID, "upload", res)
		if err := vw.DB.Create(&record).Error; err != nil {
			vw.Logger.WithError(err).Error("failed to persist record")
		}
		job.CountFor(res.Status)
		// Incremental counter updates keep the websocket feed live.
		vw.DB.Model(job).Updates(map[string]interface{}{
			"processed_count":     job.ProcessedCount,
			"deliverable_count":   job.DeliverableCount,
			"undeliverable_count": job.UndeliverableCount,
			"unknown_count":       job.UnknownCount,
			"invalid_count":       job.InvalidCount,
		})
	}
	if ctx.Err() != nil {
		// Shutdown mid-job: leave it processing; the restart requeue below
		// returns it to pending.
		return nil
	}

	done := time.Now()
	return vw.DB.Model(job).Updates(map[string]interface{}{
		"status":       "completed",
		"completed_at": done,
	}).Error
}

func (vw *VerifyWorker) failJob(job *models.ValidationJob, msg string) {
	now := time.Now()
	if err := vw.DB.Model(job).Updates(map[string]interface{}{
		"status":       "failed",
		"error":        msg,
		"completed_at": now,
	}).Error; err != nil {
		vw.Logger.WithError(err).Error("failed to mark job failed")
	}
}

// RequeueStale returns jobs stuck in processing (e.g. after a crash) to
// pending so they run again. Called once at startup.
func (vw *VerifyWorker) RequeueStale() {
	res := vw.DB.Model(&models.ValidationJob{}).
		Where("status = ? AND source = ?", "processing", "upload").
		Update("status", "pending")
	if res.Error != nil {
		vw.Logger.WithError(res.Error).Error("failed to requeue stale jobs")
		return
	}
	if res.RowsAffected > 0 {
		vw.Logger.WithField("count", res.RowsAffected).Warn("requeued stale upload jobs")
	}
}
