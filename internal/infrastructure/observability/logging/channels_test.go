package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetChannelLevelEnablesDebug(t *testing.T) {
	logger, err := NewChanneledLogger(nil)
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, logger.Track().Enabled(ctx, slog.LevelDebug),
		"channels default to info")

	require.NoError(t, logger.SetChannelLevel(ChannelTrack, slog.LevelDebug))
	assert.True(t, logger.Track().Enabled(ctx, slog.LevelDebug))
	assert.False(t, logger.Session().Enabled(ctx, slog.LevelDebug),
		"other channels keep their level")
}

func TestContextLoggersUseRequestedChannel(t *testing.T) {
	logger, err := NewChanneledLogger(nil)
	require.NoError(t, err)
	require.NoError(t, logger.SetChannelLevel(ChannelSession, slog.LevelWarn))

	ctx := context.Background()
	assert.False(t, logger.WithOperation(ChannelSession, "session_reap").Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.WithSite(ChannelTrack, "site_123").Enabled(ctx, slog.LevelInfo))
}

func TestGetChannelFallsBackToSystem(t *testing.T) {
	logger, err := NewChanneledLogger(nil)
	require.NoError(t, err)

	assert.Same(t, logger.System(), logger.GetChannel(Channel("nope")))
}
