// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package demo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tve/clicks/board"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunCount(t *testing.T) {
	n := 0
	err := Run(context.Background(), zap.NewNop().Sugar(), 3, time.Millisecond,
		func(context.Context) error { n++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := Run(ctx, zap.NewNop().Sugar(), 0, time.Hour,
		func(context.Context) error { n++; cancel(); return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunHalts(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	done := make(chan error)
	n := 0
	go func() {
		done <- Run(ctx, zap.New(core).Sugar(), 0, time.Millisecond,
			func(context.Context) error { n++; return boom })
	}()

	// The demo stays halted until interrupted.
	select {
	case <-done:
		t.Fatal("Run returned before being interrupted")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	assert.ErrorIs(t, <-done, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, logs.FilterMessage("halted, interrupt to exit").Len())
}

func TestSleep(t *testing.T) {
	assert.True(t, Sleep(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
}

func TestFlagsOverrideConfig(t *testing.T) {
	o := &Options{}
	cmd := &cobra.Command{Use: "test"}
	o.AddFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--config", "", "--format", "bogus"}))

	// The bogus format is caught when the board validates the configuration.
	var seen *board.Config
	_, err := Setup(cmd, o, func(cfg *board.Config) { seen = cfg })
	require.Error(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "bogus", seen.MQTT.Format)
}

// syncCounter is a log sink counting flushes.
type syncCounter struct {
	syncs int
}

func (s *syncCounter) Write(p []byte) (int, error) { return len(p), nil }
func (s *syncCounter) Sync() error                 { s.syncs++; return nil }

func TestSetupFailureFlushesLogger(t *testing.T) {
	sink := &syncCounter{}
	log := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		sink, zapcore.DebugLevel))
	o := &Options{}
	cmd := &cobra.Command{Use: "test"}
	o.AddFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--config", "", "--format", "bogus"}))

	env, err := withLogger(cmd, o, nil, log)
	require.Error(t, err)
	assert.Nil(t, env)
	assert.Equal(t, 1, sink.syncs)
}
