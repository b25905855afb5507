// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package demo holds what the click demo commands have in common: flags, logger, board and
// broker setup, and the superloop that runs a demo task until it fails or is interrupted.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tve/clicks/board"
	"github.com/tve/clicks/publish"
)

// Options are the flags shared by the demos.
type Options struct {
	Config  string
	Socket  string
	Topic   string
	Verbose bool
	Count   int
	Broker  string
	Format  string
}

// AddFlags registers the shared flags on cmd.
func (o *Options) AddFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.Config, "config", "c", "clicks.yaml", "board configuration file")
	f.StringVarP(&o.Socket, "socket", "s", "", "mikroBUS socket the click sits in")
	f.StringVar(&o.Topic, "topic", "", "MQTT topic for the results")
	f.BoolVarP(&o.Verbose, "verbose", "v", false, "enable debug output")
	f.IntVarP(&o.Count, "count", "n", 0, "number of iterations, 0 runs forever")
	f.StringVar(&o.Broker, "mqtt", "", "host:port of an MQTT broker to publish results to")
	f.StringVar(&o.Format, "format", "", "MQTT payload format, json or varint")
}

// Env is what a demo runs with.
type Env struct {
	Config *board.Config
	Log    *zap.Logger
	Board  *board.Board
	Pub    *publish.Client // nil without a broker
}

// Setup loads the configuration, lets apply override it from demo specific flags, and
// opens the logger, the board and the broker connection.
func Setup(cmd *cobra.Command, o *Options, apply func(*board.Config)) (*Env, error) {
	log, err := NewLogger(o.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return withLogger(cmd, o, apply, log)
}

// withLogger is Setup once the logger exists, the logger is flushed when Setup fails.
func withLogger(cmd *cobra.Command, o *Options, apply func(*board.Config), log *zap.Logger) (*Env, error) {
	env, err := setup(cmd, o, apply, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return env, nil
}

func setup(cmd *cobra.Command, o *Options, apply func(*board.Config), log *zap.Logger) (*Env, error) {
	cfg, err := board.Load(o.Config)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("mqtt") {
		cfg.MQTT.Broker = o.Broker
	}
	if f.Changed("format") {
		cfg.MQTT.Format = o.Format
	}
	if apply != nil {
		apply(cfg)
	}

	b, err := board.Open(cfg, log.Sugar().Debugf)
	if err != nil {
		return nil, err
	}
	env := &Env{Config: cfg, Log: log, Board: b}
	if cfg.MQTT.Broker != "" {
		env.Pub, err = publish.Connect(publish.Opts{
			Broker:   cfg.MQTT.Broker,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			Format:   publish.Format(cfg.MQTT.Format),
			ErrorLog: zap.NewStdLog(log.Named("mqtt")),
			Logger:   log.Sugar().Debugf,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
	}
	return env, nil
}

// Close releases everything Setup opened.
func (e *Env) Close() {
	e.Pub.Close()
	if err := e.Board.Close(); err != nil {
		e.Log.Warn("closing board", zap.Error(err))
	}
	_ = e.Log.Sync()
}

// NewLogger returns a logger printing human readable lines on stdout.
func NewLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stdout"}
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.Sampling = nil
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// Run calls task every period until ctx is done or count iterations have run, 0 meaning
// no limit. When task fails the demo halts: the error is logged and Run blocks until ctx
// is done before returning the error. There is no retry.
func Run(ctx context.Context, log *zap.SugaredLogger, count int, period time.Duration,
	task func(context.Context) error,
) error {
	for i := 1; ; i++ {
		if err := task(ctx); err != nil {
			log.Errorw("halted, interrupt to exit", "error", err)
			<-ctx.Done()
			return err
		}
		if count > 0 && i >= count {
			return nil
		}
		if !Sleep(ctx, period) {
			return nil
		}
	}
}

// Sleep waits for d and returns true, or returns false early if ctx is done.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
