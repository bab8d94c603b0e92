package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/retry"
)

// Reporter wraps an Uploader with retries and failure classification.
type Reporter struct {
	uploader Uploader
	policy   retry.Policy
	recorder metrics.Recorder
	sleep    retry.Sleeper
}

// NewReporter creates a reporter; recorder may be nil.
func NewReporter(uploader Uploader, policy retry.Policy, recorder metrics.Recorder) *Reporter {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Reporter{uploader: uploader, policy: policy, recorder: recorder, sleep: retry.ContextSleep}
}

// Report uploads req.File. Every failure is returned as a warning-severity
// reporting error so callers can record it without failing the entry.
func (r *Reporter) Report(ctx context.Context, req Request) (string, error) {
	kind := string(r.uploader.Kind())
	if _, err := os.Stat(req.File); err != nil {
		r.recorder.IncUploadFailure(kind)
		return "", foundationerrors.ReportingError("coverage report not found").
			WithCause(err).
			WithContext("file", req.File).
			Build()
	}

	var location string
	err := r.policy.Do(ctx, r.sleep, func(attempt int) error {
		loc, err := r.uploader.Upload(ctx, req)
		if err == nil {
			location = loc
		}
		return err
	}, retryable, func(n int, delay time.Duration, err error) {
		r.recorder.IncUploadRetry(kind)
		slog.WarnContext(ctx, "Coverage upload failed; retrying",
			logfields.Uploader(kind),
			logfields.Attempt(n),
			slog.Duration("delay", delay),
			logfields.Error(err))
	})
	if err != nil {
		r.recorder.IncUploadFailure(kind)
		return "", foundationerrors.ReportingError(fmt.Sprintf("coverage upload via %s failed", kind)).
			WithCause(err).
			WithContext("uploader", kind).
			WithContext("entry", req.EntryID).
			Build()
	}
	return location, nil
}

// retryable rejects client errors that a retry cannot fix.
func retryable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
