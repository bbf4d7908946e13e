package matching

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

const (
	DefaultMinScore  = 0.3
	DefaultHighScore = 0.8
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier queues a notification. Implementations must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, event notifications.Event) error
}

// ActivityAppender writes request timeline entries. It never fails the caller.
type ActivityAppender interface {
	Append(ctx context.Context, requestID uuid.UUID, eventType enums.ActivityEventType, payload map[string]any)
}

// MatchResult summarizes one matching run for a request.
type MatchResult struct {
	RequestID   uuid.UUID
	Matches     []models.Match
	Count       int
	Created     int
	Updated     int
	Deactivated int
	TopScore    float64
	// Skipped is set when the request is not in a matchable status.
	Skipped bool
}

// PerRequestResult is one entry of a batch run.
type PerRequestResult struct {
	RequestID uuid.UUID
	Result    *MatchResult
	Err       error
}

// BatchResult aggregates a run over every matchable request.
type BatchResult struct {
	Results   []PerRequestResult
	Succeeded int
	Failed    int
}

// Engine scores requests against the property inventory and keeps the match
// table in sync with the result.
type Engine struct {
	db          txRunner
	repo        Repository
	locker      Locker
	evaluator   Evaluator
	notifier    Notifier
	activity    ActivityAppender
	metrics     *metrics.MatchingMetrics
	logg        *logger.Logger
	minScore    float64
	highScore   float64
	concurrency int
	now         func() time.Time
}

type EngineParams struct {
	DB        txRunner
	Repo      Repository
	Locker    Locker
	Evaluator *Evaluator
	Notifier  Notifier
	Activity  ActivityAppender
	Metrics   *metrics.MatchingMetrics
	Logger    *logger.Logger
	MinScore  float64
	HighScore float64
	// BatchConcurrency bounds how many requests a batch run matches at once.
	BatchConcurrency int
	Now              func() time.Time
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	if params.Repo == nil {
		return nil, errors.New("matching repository required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier required")
	}
	if params.Activity == nil {
		return nil, errors.New("activity writer required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}

	locker := params.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	evaluator := NewEvaluator(DefaultWeights)
	if params.Evaluator != nil {
		evaluator = *params.Evaluator
	}
	minScore := params.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	highScore := params.HighScore
	if highScore <= 0 {
		highScore = DefaultHighScore
	}
	if highScore < minScore {
		return nil, errors.New("high score threshold below min score")
	}
	concurrency := params.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		db:          params.DB,
		repo:        params.Repo,
		locker:      locker,
		evaluator:   evaluator,
		notifier:    params.Notifier,
		activity:    params.Activity,
		metrics:     params.Metrics,
		logg:        params.Logger,
		minScore:    minScore,
		highScore:   highScore,
		concurrency: concurrency,
		now:         now,
	}, nil
}

// plan is the set of writes one run needs to converge the match table.
type plan struct {
	create     []models.Match
	update     []models.Match
	deactivate []uuid.UUID
	// high holds property ids whose match reached the high-score threshold in this run.
	high map[uuid.UUID]bool
}

// MatchForRequest re-scores one request. A missing or soft-deleted request is
// NotFound; a request outside open/in_progress yields an empty result.
// Re-running with unchanged data writes nothing and notifies nobody.
func (e *Engine) MatchForRequest(ctx context.Context, requestID uuid.UUID) (*MatchResult, error) {
	start := e.now()
	fields := map[string]any{"customer_request_id": requestID.String()}
	if jobID, ok := JobIDFromContext(ctx); ok {
		fields["job_id"] = jobID.String()
	}
	ctx = e.logg.WithFields(ctx, fields)

	release, err := e.locker.Lock(ctx, requestID)
	if err != nil {
		err = lockError(err)
		e.recordFailure(ctx, requestID, err, start)
		return nil, err
	}
	defer release()

	result, err := e.run(ctx, requestID)
	if err != nil {
		e.recordFailure(ctx, requestID, err, start)
		return nil, err
	}

	e.afterCommit(ctx, result, start)
	return result, nil
}

func (e *Engine) run(ctx context.Context, requestID uuid.UUID) (*MatchResult, error) {
	req, err := e.repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer request")
	}
	if req == nil || req.IsDeleted() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer request not found")
	}
	if !req.Status.IsMatchable() {
		return &MatchResult{RequestID: requestID, Skipped: true}, nil
	}
	if err := ValidateCriteria(req); err != nil {
		return nil, err
	}

	candidates, err := e.repo.ListCandidateProperties(ctx, req.Category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list candidate properties")
	}
	existing, err := e.repo.ListActiveMatches(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active matches")
	}

	p := e.diff(req, candidates, existing)

	if err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		for i := range p.create {
			if err := repo.CreateMatch(ctx, &p.create[i]); err != nil {
				if db.IsUniqueViolation(err, models.ActiveMatchPairIndex) {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "concurrent match write")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create match")
			}
		}
		for _, m := range p.update {
			if err := repo.UpdateMatchScore(ctx, m.ID, m.Score, m.Breakdown.Data(), m.UpdatedAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update match score")
			}
		}
		if _, err := repo.DeactivateMatches(ctx, p.deactivate, e.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate stale matches")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	active, err := e.repo.ListActiveMatches(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload active matches")
	}

	result := &MatchResult{
		RequestID:   requestID,
		Matches:     active,
		Count:       len(active),
		Created:     len(p.create),
		Updated:     len(p.update),
		Deactivated: len(p.deactivate),
	}
	if len(active) > 0 {
		result.TopScore = active[0].Score
	}

	e.notify(ctx, result, p)
	return result, nil
}

// diff compares fresh evaluations against the active matches. Matches whose
// property left the candidate set are deactivated. Matches that fell under
// the threshold are deactivated while still proposed; once personnel acted
// on them only the score is refreshed.
func (e *Engine) diff(req *models.CustomerRequest, candidates []models.Property, existing []models.Match) plan {
	now := e.now().UTC()
	byProperty := make(map[uuid.UUID]models.Match, len(existing))
	for _, m := range existing {
		byProperty[m.PropertyID] = m
	}

	p := plan{high: map[uuid.UUID]bool{}}
	seen := make(map[uuid.UUID]bool, len(candidates))

	for i := range candidates {
		prop := &candidates[i]
		if !PassesPrefilter(req, prop) {
			continue
		}
		seen[prop.ID] = true

		eval := e.evaluator.Evaluate(req, prop)
		current, ok := byProperty[prop.ID]

		if !ok {
			if eval.Score < e.minScore {
				continue
			}
			m := models.Match{
				ID:         uuid.New(),
				RequestID:  req.ID,
				PropertyID: prop.ID,
				Status:     enums.MatchStatusProposed,
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			setScore(&m, eval)
			p.create = append(p.create, m)
			if eval.Score >= e.highScore {
				p.high[prop.ID] = true
			}
			continue
		}

		if eval.Score < e.minScore && current.Status == enums.MatchStatusProposed {
			p.deactivate = append(p.deactivate, current.ID)
			continue
		}
		if current.Score == eval.Score && maps.Equal(current.Breakdown.Data(), eval.Breakdown) {
			continue
		}
		if current.Score < e.highScore && eval.Score >= e.highScore {
			p.high[prop.ID] = true
		}
		current.UpdatedAt = now
		setScore(&current, eval)
		p.update = append(p.update, current)
	}

	for _, m := range existing {
		if !seen[m.PropertyID] {
			p.deactivate = append(p.deactivate, m.ID)
		}
	}
	return p
}

func (e *Engine) notify(ctx context.Context, result *MatchResult, p plan) {
	occurred := e.now().UTC()

	// A high-score match always comes with new-match; unchanged re-runs send nothing.
	if len(p.create) > 0 || len(p.high) > 0 {
		best := bestNotified(result.Matches, p)
		matchID := best.ID
		e.send(ctx, notifications.Event{
			Type:      enums.NotificationTypeNewMatch,
			RequestID: result.RequestID,
			MatchID:   &matchID,
			Extra: map[string]any{
				"new_count":    len(p.create),
				"total_active": result.Count,
				"top_score":    result.TopScore,
			},
			OccurredAt: occurred,
		})
	}

	for _, m := range result.Matches {
		if !p.high[m.PropertyID] {
			continue
		}
		matchID := m.ID
		e.send(ctx, notifications.Event{
			Type:       enums.NotificationTypeHighScoreMatch,
			RequestID:  result.RequestID,
			MatchID:    &matchID,
			Extra:      map[string]any{"score": m.Score},
			OccurredAt: occurred,
		})
	}
}

// bestNotified picks the highest scoring match that is new or newly high.
func bestNotified(active []models.Match, p plan) models.Match {
	fresh := make(map[uuid.UUID]bool, len(p.create))
	for _, m := range p.create {
		fresh[m.ID] = true
	}
	var best models.Match
	found := false
	for _, m := range active {
		if !fresh[m.ID] && !p.high[m.PropertyID] {
			continue
		}
		if !found || m.Score > best.Score {
			best, found = m, true
		}
	}
	if !found && len(p.create) > 0 {
		best = p.create[0]
	}
	return best
}

func (e *Engine) send(ctx context.Context, event notifications.Event) {
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logg.Error(e.logg.WithField(ctx, "notification_type", string(event.Type)), "failed to queue notification", err)
	}
}

func (e *Engine) afterCommit(ctx context.Context, result *MatchResult, start time.Time) {
	payload := map[string]any{
		"matched":     result.Count,
		"new":         result.Created,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
		"top_score":   result.TopScore,
	}
	outcome := "succeeded"
	if result.Skipped {
		outcome = "skipped"
		payload = map[string]any{"skipped": true, "reason": "request not open"}
	}
	if jobID, ok := JobIDFromContext(ctx); ok {
		payload["job_id"] = jobID.String()
	}
	e.activity.Append(ctx, result.RequestID, enums.ActivityAutoMatch, payload)

	e.metrics.ObserveRun(outcome, e.now().Sub(start))
	e.metrics.AddUpserted("created", result.Created)
	e.metrics.AddUpserted("updated", result.Updated)
	e.metrics.AddDeactivated(result.Deactivated)
	for _, m := range result.Matches {
		e.metrics.ObserveScore(m.Score)
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"outcome":     outcome,
		"matched":     result.Count,
		"new":         result.Created,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
		"top_score":   result.TopScore,
	}), "matching run completed")
}

func (e *Engine) recordFailure(ctx context.Context, requestID uuid.UUID, err error, start time.Time) {
	// The run may have failed because ctx expired; the entry must still land.
	writeCtx := context.WithoutCancel(ctx)

	payload := map[string]any{"error": err.Error()}
	if appErr := pkgerrors.As(err); appErr != nil {
		payload["code"] = string(appErr.Code())
	}
	if jobID, ok := JobIDFromContext(ctx); ok {
		payload["job_id"] = jobID.String()
	}
	if !FailureOwned(ctx) {
		e.activity.Append(writeCtx, requestID, enums.ActivityAutoMatchFailed, payload)
	}

	e.metrics.ObserveRun("failed", e.now().Sub(start))
	e.logg.Error(ctx, "matching run failed", err)
}

// MatchAllActiveRequests runs MatchForRequest for every open or in-progress
// request. Per-request failures are collected, never returned. The error is
// non-nil only when the request list cannot be loaded or ctx ends early, in
// which case the results gathered so far are still returned.
func (e *Engine) MatchAllActiveRequests(ctx context.Context) (*BatchResult, error) {
	ids, err := e.repo.ListMatchableRequestIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list matchable requests")
	}

	results := make([]PerRequestResult, len(ids))
	started := 0

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			res, err := e.MatchForRequest(ctx, id)
			results[i] = PerRequestResult{RequestID: id, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Results: results[:started]}
	for _, r := range batch.Results {
		if r.Err != nil {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"requests":  len(ids),
		"processed": started,
		"succeeded": batch.Succeeded,
		"failed":    batch.Failed,
	}), "batch matching completed")

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

func setScore(m *models.Match, eval Evaluation) {
	m.Score = eval.Score
	m.Breakdown = datatypes.NewJSONType(eval.Breakdown)
}

func lockError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire request lock")
}
