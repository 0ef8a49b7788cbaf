package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/puppytalk-backend/api/responses"
	"github.com/angelmondragon/puppytalk-backend/internal/dispatch"
	"github.com/angelmondragon/puppytalk-backend/internal/inactivity"
	"github.com/angelmondragon/puppytalk-backend/internal/stats"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

// Pipeline is the slice of the notification pipeline exposed to operators.
type Pipeline interface {
	RunInactivityScan(ctx context.Context) (inactivity.ScanResult, error)
	RunDispatch(ctx context.Context) (dispatch.Result, error)
	GetStatistics(ctx context.Context) (stats.Statistics, error)
}

type scanResponse struct {
	Scanned  int      `json:"scanned"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Deferred bool     `json:"deferred"`
	Errors   []string `json:"errors,omitempty"`
}

type dispatchResponse struct {
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Retried   int      `json:"retried"`
	Skipped   int      `json:"skipped"`
	Deferred  int      `json:"deferred"`
	Errors    []string `json:"errors,omitempty"`
}

func NotificationStatistics(pipeline Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := pipeline.GetStatistics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// TriggerInactivityScan runs one scan synchronously and returns its summary.
// Per-user failures are reported in the body; only aborted scans are errors.
func TriggerInactivityScan(pipeline Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := pipeline.RunInactivityScan(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, asStorageError(err, "inactivity scan"))
			return
		}
		responses.WriteSuccess(w, scanResponse{
			Scanned:  result.Scanned,
			Created:  result.Created,
			Skipped:  result.Skipped,
			Failed:   result.Failed,
			Deferred: result.Deferred,
			Errors:   errorStrings(result.Errors),
		})
	}
}

func TriggerDispatch(pipeline Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := pipeline.RunDispatch(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, asStorageError(err, "dispatch run"))
			return
		}
		responses.WriteSuccess(w, dispatchResponse{
			Attempted: result.Attempted,
			Sent:      result.Sent,
			Failed:    result.Failed,
			Retried:   result.Retried,
			Skipped:   result.Skipped,
			Deferred:  result.Deferred,
			Errors:    errorStrings(result.Errors),
		})
	}
}

func asStorageError(err error, step string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, step)
}
