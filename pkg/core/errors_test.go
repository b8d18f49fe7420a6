package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/academiaflow/annotengine/pkg/core"
)

func TestError_Classification(t *testing.T) {
	cause := errors.New("disk full")
	err := core.PersistFailed("save", "a1", cause)

	assert.ErrorIs(t, err, core.ErrPersistFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, core.ErrLoadFailed)
	assert.Equal(t, core.KindPersistFailed, core.Classify(err))
	assert.Equal(t, "AnnotationPersistFailed (save a1): disk full", err.Error())

	// Already classified errors are not wrapped twice.
	assert.Same(t, err, core.PersistFailed("delete", "a1", err))

	wrapped := fmt.Errorf("gateway: %w", core.LoadFailed("pdf-42", context.DeadlineExceeded))
	assert.ErrorIs(t, wrapped, core.ErrLoadFailed)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.Equal(t, core.KindLoadFailed, core.Classify(wrapped))

	assert.Nil(t, core.PersistFailed("save", "a1", nil))
	assert.Equal(t, core.KindFileNotFound, core.Classify(fmt.Errorf("open: %w", core.ErrFileNotFound)))
	assert.Equal(t, core.ErrorKind(0), core.Classify(cause))
}

func TestReporterFunc(t *testing.T) {
	var got []error
	r := core.ReporterFunc(func(err error) { got = append(got, err) })
	r.Report(core.ErrInvalidDocument)
	assert.Equal(t, []error{core.ErrInvalidDocument}, got)
}
