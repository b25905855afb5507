// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The gaussmeter command demonstrates a Gaussmeter click: it configures the magnetometer and
// then prints the temperature and the flux density along the three axes every 400ms.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tve/clicks/board"
	"github.com/tve/clicks/gaussmeter"
	"github.com/tve/clicks/internal/demo"
)

type options struct {
	demo.Options
	addr   uint16
	period time.Duration
	burst  bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "gaussmeter",
		Short: "Print magnetometer and temperature readings from a Gaussmeter click",
		Long: `Configures the MLX90393 on a Gaussmeter click to measure the temperature and the
magnetic flux density along X, Y and Z, then prints a reading every 400ms until
interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}
	o.AddFlags(cmd)
	f := cmd.Flags()
	f.Uint16Var(&o.addr, "addr", gaussmeter.DefaultAddr, "I2C address, 0x0C..0x0F depending on the A0/A1 jumpers")
	f.DurationVar(&o.period, "period", 400*time.Millisecond, "time between readings")
	f.BoolVar(&o.burst, "burst", false, "let the chip convert continuously instead of triggering each reading")
	return cmd
}

func run(cmd *cobra.Command, o *options) error {
	env, err := demo.Setup(cmd, &o.Options, func(cfg *board.Config) {
		f := cmd.Flags()
		if f.Changed("socket") {
			cfg.Gaussmeter.Socket = o.Socket
		}
		if f.Changed("topic") {
			cfg.Gaussmeter.Topic = o.Topic
		}
		if f.Changed("addr") {
			cfg.Gaussmeter.Addr = o.addr
		}
		if f.Changed("period") {
			cfg.Gaussmeter.Period = o.period
		}
		if f.Changed("burst") {
			cfg.Gaussmeter.Burst = o.burst
		}
	})
	if err != nil {
		return err
	}
	defer env.Close()
	conf := env.Config.Gaussmeter
	log := env.Log.Sugar()

	log.Info("---- Application Init ----")
	conn, err := env.Board.I2C(conf.Socket, conf.Addr)
	if err != nil {
		return err
	}
	dev, err := gaussmeter.New(conn, nil)
	if err != nil {
		return err
	}
	defer halt(dev, log)
	dev.SetLogger(log.Debugf)
	time.Sleep(100 * time.Millisecond)

	opts := gaussmeter.DefaultOpts
	if conf.Burst {
		opts.Mode = gaussmeter.Burst
	}
	if err := dev.Configure(opts); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	g := &gaussDemo{sensor: dev, log: log, topic: conf.Topic}
	if env.Pub != nil {
		g.pub = env.Pub
	}
	return demo.Run(cmd.Context(), log, o.Count, conf.Period, g.task)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gaussmeter: %s.\n", err)
		os.Exit(1)
	}
}
