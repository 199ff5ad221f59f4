package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// stageExecutor runs one pipeline stage under its time budget, retrying
// transient failures with exponential backoff. The budget covers all
// attempts of the stage, not each attempt individually.
type stageExecutor struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
}

// run executes fn under the stage budget. A context deadline hit inside fn
// is reported as ErrStageTimeout. Other failures are retried up to
// maxRetries times, then attributed to the stage.
func (e stageExecutor) run(ctx context.Context, stage Stage, sequenceNumber int, fn func(ctx context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var lastErr error
	backoff := e.baseBackoff

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-stageCtx.Done():
				return e.wrap(stage, sequenceNumber, stageCtx, lastErr)
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := fn(stageCtx)
		if err == nil {
			return nil
		}
		lastErr = err

		if stageCtx.Err() != nil {
			return e.wrap(stage, sequenceNumber, stageCtx, lastErr)
		}
	}

	return &StageError{Stage: stage, SequenceNumber: sequenceNumber, Err: lastErr}
}

// wrap attributes a context-terminated stage to its cause. A deadline on the
// stage context means the budget was exhausted; cancellation from above is
// passed through untouched so callers can tell an aborted run from a failed
// stage.
func (e stageExecutor) wrap(stage Stage, sequenceNumber int, stageCtx context.Context, lastErr error) error {
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		err := fmt.Errorf("%w: %s after %s", ErrStageTimeout, stage, e.timeout)
		if lastErr != nil {
			err = fmt.Errorf("%w (last attempt: %v)", err, lastErr)
		}
		return &StageError{Stage: stage, SequenceNumber: sequenceNumber, Err: err}
	}
	if lastErr != nil {
		return &StageError{Stage: stage, SequenceNumber: sequenceNumber, Err: lastErr}
	}
	return &StageError{Stage: stage, SequenceNumber: sequenceNumber, Err: stageCtx.Err()}
}
