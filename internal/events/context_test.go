package events_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/photosync/internal/events"
)

func TestFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return default logger when none in context
	logger := events.FromContext(ctx)
	assert.NotNil(t, logger)
}

func TestWithLogger(t *testing.T) {
	ctx := context.Background()
	logger := events.Discard()

	ctx = events.WithLogger(ctx, logger)
	retrieved := events.FromContext(ctx)

	assert.Same(t, logger, retrieved)
}

func TestWithRunID(t *testing.T) {
	var buf bytes.Buffer
	ctx := events.WithLogger(context.Background(), events.NewTestLogger(events.InfoLevel, "json", &buf))

	ctx = events.WithRunID(ctx)
	runID := events.GetRunID(ctx)

	_, err := uuid.Parse(runID)
	require.NoError(t, err)

	events.FromContext(ctx).Info("tagged")
	assert.Contains(t, buf.String(), `"run_id":"`+runID+`"`)
}

func TestWithRunIDIsUnique(t *testing.T) {
	a := events.GetRunID(events.WithRunID(context.Background()))
	b := events.GetRunID(events.WithRunID(context.Background()))
	assert.NotEqual(t, a, b)
}

func TestGetRunIDEmpty(t *testing.T) {
	assert.Empty(t, events.GetRunID(context.Background()))
}

func TestSetDefault(t *testing.T) {
	original := events.FromContext(context.Background())
	t.Cleanup(func() { events.SetDefault(original) })

	customLogger := events.Discard()
	events.SetDefault(customLogger)

	assert.Same(t, customLogger, events.FromContext(context.Background()))
}
