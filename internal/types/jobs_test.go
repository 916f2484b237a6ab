package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobResult_Counts(t *testing.T) {
	start := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	result := NewJobResult("commission-application", start)

	result.Success()
	result.Success()
	result.Skip()
	result.Failure(errors.New("boom"))

	finished := result.Finish(start.Add(time.Minute))

	assert.Equal(t, 4, finished.Processed)
	assert.Equal(t, 2, finished.Succeeded)
	assert.Equal(t, 1, finished.Skipped)
	assert.Equal(t, 1, finished.Failed)
	assert.Equal(t, []string{"boom"}, finished.Errors)
	assert.Equal(t, start.Add(time.Minute), finished.FinishedAt)
}

func TestJobResult_MergeCapsErrors(t *testing.T) {
	result := NewJobResult("auto-confirm", time.Now())
	partial := NewJobResult("auto-confirm", time.Now())
	for i := range maxRecordedErrors + 10 {
		partial.Failure(fmt.Errorf("item %d", i))
	}

	result.Success()
	result.Merge(partial)

	assert.Equal(t, maxRecordedErrors+11, result.Processed)
	assert.Equal(t, maxRecordedErrors+10, result.Failed)
	assert.Len(t, result.Errors, maxRecordedErrors)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: db down", ErrPersistence)))
	assert.True(t, IsRetryable(fmt.Errorf("%w: version moved", ErrConflict)))
	assert.False(t, IsRetryable(fmt.Errorf("%w: nope", ErrForbidden)))
	assert.False(t, IsRetryable(ErrInvalidTransition))
}
