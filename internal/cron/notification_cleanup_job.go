package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultCleanupBatch  = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiredNotificationDeleter interface {
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository expiredNotificationDeleter
	// Retention is in days.
	Retention int
	BatchSize int
}

// notificationCleanupJob purges read in-app notifications past the retention
// window in short transactions of BatchSize rows. Unread rows stay.
type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      expiredNotificationDeleter
	retention int
	batch     int
	now       func() time.Time
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("notifications repository required")
	}
	j := &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if j.retention <= 0 {
		j.retention = defaultRetentionDays
	}
	if j.batch <= 0 {
		j.batch = defaultCleanupBatch
	}
	return j, nil
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var total int64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := j.repo.DeleteReadBefore(ctx, tx, cutoff, j.batch)
			deleted = n
			return err
		})
		if err != nil {
			return fmt.Errorf("delete batch %d: %w", batches+1, err)
		}
		batches++
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff.Format(time.RFC3339),
		"retention_days": j.retention,
		"rows_deleted":   total,
		"batches":        batches,
	}), "expired notifications removed")
	return nil
}
