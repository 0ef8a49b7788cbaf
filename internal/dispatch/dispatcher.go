package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/metrics"
)

// Transport delivers one push message to one device token.
type Transport interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

type tokenDirectory interface {
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type notificationStore interface {
	FindPending(ctx context.Context, q notifications.PendingQuery) ([]models.PushNotification, error)
	Claim(ctx context.Context, n *models.PushNotification, lease time.Duration) (notifications.Claim, bool, error)
	MarkSent(ctx context.Context, claim notifications.Claim) error
	RecordFailure(ctx context.Context, claim notifications.Claim, reason string, maxAttempts int, nextAttemptAt time.Time) (enums.NotificationStatus, error)
	MarkFailed(ctx context.Context, claim notifications.Claim, reason string) error
	Release(ctx context.Context, claim notifications.Claim) error
}

// Result summarizes one dispatch run.
type Result struct {
	// Attempted counts notifications this run claimed.
	Attempted int
	Sent      int
	// Failed counts notifications that reached FAILED in this run.
	Failed int
	// Retried counts failed attempts left PENDING for a later run.
	Retried int
	// Skipped counts notifications another dispatcher claimed first.
	Skipped int
	// Deferred counts notifications left for the next run once the budget ran out.
	Deferred int
	Errors   error
}

// DispatcherParams configures a Dispatcher.
type DispatcherParams struct {
	Store           notificationStore
	Tokens          tokenDirectory
	Transport       Transport
	BatchSize       int
	MaxAttempts     int
	Debounce        time.Duration
	RunBudget       time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	ClaimLease      time.Duration
	SendTimeout     time.Duration
	SendConcurrency int
	Metrics         *metrics.PipelineMetrics
	Logger          *logger.Logger
	Now             func() time.Time
}

// Dispatcher delivers PENDING notifications and records the outcome.
type Dispatcher struct {
	store       notificationStore
	tokens      tokenDirectory
	transport   Transport
	batchSize   int
	maxAttempts int
	debounce    time.Duration
	budget      time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	lease       time.Duration
	sendTimeout time.Duration
	concurrency int
	metrics     *metrics.PipelineMetrics
	logg        *logger.Logger
	now         func() time.Time
	jitter      func(time.Duration) time.Duration
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Store == nil {
		return nil, errors.New("notification store required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token directory required")
	}
	if params.Transport == nil {
		return nil, errors.New("push transport required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}
	if params.ClaimLease <= 0 {
		return nil, errors.New("claim lease must be positive")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := params.SendConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:       params.Store,
		tokens:      params.Tokens,
		transport:   params.Transport,
		batchSize:   batchSize,
		maxAttempts: params.MaxAttempts,
		debounce:    params.Debounce,
		budget:      params.RunBudget,
		backoffBase: params.BackoffBase,
		backoffMax:  params.BackoffMax,
		lease:       params.ClaimLease,
		sendTimeout: params.SendTimeout,
		concurrency: concurrency,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         now,
		jitter:      withJitter,
	}, nil
}

// Run delivers one batch of due notifications, oldest first. Only a failure
// to load the batch aborts the run. Once the budget is spent no new
// notification is started, but the one in flight always finishes.
func (d *Dispatcher) Run(ctx context.Context) (Result, error) {
	var result Result
	start := d.now().UTC()

	pending, err := d.store.FindPending(ctx, notifications.PendingQuery{
		CreatedBefore: start.Add(-d.debounce),
		Now:           start,
		ClaimLease:    d.lease,
		Limit:         d.batchSize,
	})
	if err != nil {
		return result, fmt.Errorf("find pending notifications: %w", err)
	}

	for i := range pending {
		if d.budgetSpent(start) || ctx.Err() != nil {
			result.Deferred = len(pending) - i
			break
		}
		n := &pending[i]
		outcome, err := d.dispatchOne(context.WithoutCancel(ctx), n)
		d.metrics.IncDispatch(outcome)
		result.record(outcome)
		if err != nil {
			result.Errors = multierr.Append(result.Errors, fmt.Errorf("notification %s: %w", n.ID, err))
		}
	}

	d.log(ctx, start, len(pending), result)
	return result, nil
}

func (r *Result) record(outcome string) {
	switch outcome {
	case metrics.DispatchSkipped:
		r.Skipped++
		return
	case metrics.DispatchErrored:
		return
	}
	r.Attempted++
	switch outcome {
	case metrics.DispatchSent:
		r.Sent++
	case metrics.DispatchRetried:
		r.Retried++
	case metrics.DispatchFailed, metrics.DispatchNoDestination:
		r.Failed++
	}
}

func (d *Dispatcher) budgetSpent(start time.Time) bool {
	return d.budget > 0 && d.now().Sub(start) >= d.budget
}

func (d *Dispatcher) dispatchOne(ctx context.Context, n *models.PushNotification) (outcome string, err error) {
	logCtx := d.logg.WithNotificationID(ctx, n.ID.String())
	logCtx = d.logg.WithUserID(logCtx, n.UserID.String())
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.DispatchErrored
			err = fmt.Errorf("panic during dispatch: %v", r)
			d.logg.Error(logCtx, "dispatch.panic", err)
		}
	}()

	claim, ok, err := d.store.Claim(ctx, n, d.lease)
	if err != nil {
		return metrics.DispatchErrored, err
	}
	if !ok {
		d.logg.Debug(logCtx, "dispatch.claim_lost")
		return metrics.DispatchSkipped, nil
	}

	tokens, err := d.tokens.ActiveTokens(ctx, n.UserID)
	if err != nil {
		if relErr := d.store.Release(ctx, claim); relErr != nil {
			err = multierr.Append(err, relErr)
		}
		return metrics.DispatchErrored, err
	}
	if len(tokens) == 0 {
		if err := d.store.MarkFailed(ctx, claim, enums.FailureReasonNoDestination.String()); err != nil {
			return metrics.DispatchErrored, err
		}
		d.logg.Warn(logCtx, "dispatch.no_destination")
		return metrics.DispatchNoDestination, nil
	}

	delivered, lastErr := d.send(ctx, logCtx, n, tokens)
	if delivered > 0 {
		if err := d.store.MarkSent(ctx, claim); err != nil {
			return metrics.DispatchErrored, err
		}
		d.logg.Info(d.logg.WithFields(logCtx, map[string]any{
			"tokens":    len(tokens),
			"delivered": delivered,
		}), "dispatch.notification_sent")
		return metrics.DispatchSent, nil
	}

	reason := enums.FailureReasonTransportFailure.WithDetail(lastErr.Error())
	attempts := n.AttemptCount + 1
	next := d.now().UTC().Add(d.jitter(backoffDelay(attempts, d.backoffBase, d.backoffMax)))
	status, err := d.store.RecordFailure(ctx, claim, reason, d.maxAttempts, next)
	if err != nil {
		return metrics.DispatchErrored, err
	}
	failCtx := d.logg.WithFields(logCtx, map[string]any{
		"attempt_count": attempts,
		"reason":        reason,
	})
	if status == enums.NotificationStatusFailed {
		d.logg.Warn(failCtx, "dispatch.notification_failed")
		return metrics.DispatchFailed, nil
	}
	d.logg.Info(d.logg.WithField(failCtx, "next_attempt_at", next), "dispatch.retry_scheduled")
	return metrics.DispatchRetried, nil
}

// send fans out to every token and returns how many accepted the message
// and the error of the last failing token. A panic in any send is re-raised
// on the calling goroutine once all sends finish.
func (d *Dispatcher) send(ctx, logCtx context.Context, n *models.PushNotification, tokens []string) (int, error) {
	data := notifications.PushData(n)
	errs := make([]error, len(tokens))

	var (
		mu        sync.Mutex
		delivered int
		panicked  any
		group     errgroup.Group
	)
	group.SetLimit(d.concurrency)
	for i, token := range tokens {
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					panicked = r
					mu.Unlock()
				}
			}()
			sendCtx := ctx
			if d.sendTimeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, d.sendTimeout)
				defer cancel()
			}
			started := time.Now()
			err := d.transport.Send(sendCtx, token, n.Title, n.Body, data)
			d.metrics.ObserveDelivery(err == nil, time.Since(started))
			if err != nil {
				errs[i] = err
				d.logg.Warn(d.logg.WithFields(logCtx, map[string]any{
					"token": maskToken(token),
					"error": err.Error(),
				}), "dispatch.token_failed")
				return nil
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	if panicked != nil {
		panic(panicked)
	}

	var lastErr error
	for _, err := range errs {
		if err != nil {
			lastErr = err
		}
	}
	return delivered, lastErr
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-6:]
}

func (d *Dispatcher) log(ctx context.Context, start time.Time, found int, result Result) {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event":       "dispatch.run",
		"found":       found,
		"attempted":   result.Attempted,
		"sent":        result.Sent,
		"failed":      result.Failed,
		"retried":     result.Retried,
		"skipped":     result.Skipped,
		"deferred":    result.Deferred,
		"duration_ms": d.now().Sub(start).Milliseconds(),
	})
	if result.Errors != nil {
		d.logg.Warn(d.logg.WithField(logCtx, "errors", result.Errors.Error()), "dispatch run finished with errors")
		return
	}
	d.logg.Info(logCtx, "dispatch run complete")
}
