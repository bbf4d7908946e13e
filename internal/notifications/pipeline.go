package notifications

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/mail"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

type PipelineParams struct {
	Config  *config.Config
	DB      *gorm.DB
	Metrics *metrics.NotificationMetrics
	Logger  *logger.Logger
}

// NewPipeline assembles the dispatcher a process uses for notification
// fan-out. Email is attached only when the feature flag is on and an SMTP
// relay is configured.
func NewPipeline(ctx context.Context, params PipelineParams) (*Dispatcher, error) {
	if params.Config == nil {
		return nil, errors.New("config required")
	}
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	cfg := params.Config
	repo := NewRepository(params.DB)

	inApp, err := NewInAppChannel(repo)
	if err != nil {
		return nil, err
	}

	dispatcherParams := DispatcherParams{
		Loader:    NewViewLoader(params.DB),
		InApp:     inApp,
		Metrics:   params.Metrics,
		Logger:    params.Logger,
		Workers:   cfg.Notifications.Workers,
		QueueSize: cfg.Notifications.QueueSize,
	}

	if cfg.FeatureFlags.EmailChannel && cfg.SMTP.Enabled() {
		mailer, err := mail.New(ctx, cfg.SMTP, params.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating mailer: %w", err)
		}
		email, err := NewEmailChannel(EmailChannelParams{
			Sender:        mailer,
			RatePerSecond: cfg.SMTP.RatePerSecond,
			Burst:         cfg.SMTP.Burst,
			PanelBaseURL:  cfg.Notifications.PanelBaseURL,
		})
		if err != nil {
			return nil, err
		}
		prefs, err := NewPreferences(repo, cfg.Notifications.PreferenceCacheTTL)
		if err != nil {
			return nil, err
		}
		dispatcherParams.Email = email
		dispatcherParams.Preferences = prefs
	} else if params.Logger != nil {
		params.Logger.Info(ctx, "email notifications disabled")
	}

	return NewDispatcher(dispatcherParams)
}
