package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/shortshare/internal/analytics"
	"github.com/serroba/shortshare/internal/analytics/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNoop_LogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	noop := store.NewNoop(zap.New(core))

	err := noop.SaveContentCreated(context.Background(), &analytics.ContentCreatedEvent{
		ShortID:   "abcd",
		Kind:      "code",
		Size:      42,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	err = noop.SaveContentViewed(context.Background(), &analytics.ContentViewedEvent{
		ShortID:  "abcd",
		Views:    2,
		ViewedAt: time.Now(),
		Referrer: "https://referrer.com",
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "content created event received", entries[0].Message)
	assert.Equal(t, "abcd", entries[0].ContextMap()["short_id"])
	assert.Equal(t, "content viewed event received", entries[1].Message)
	assert.Equal(t, int64(2), entries[1].ContextMap()["views"])
}
