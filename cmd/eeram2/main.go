// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The eeram2 command demonstrates an EERAM 2 click: it writes a short string into the
// memory, reads it back from the same location and prints it, once a second. It halts on the
// first failure.
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
	"github.com/tve/clicks/eeram2"
	"github.com/tve/clicks/internal/demo"
)

type options struct {
	demo.Options
	addr uint32
	data string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "eeram2",
		Short: "Write and read back a string on an EERAM 2 click",
		Long: `Writes a string into the EERAM on an EERAM 2 click, reads it back from the same
address after 100ms, and prints what was read. This repeats every second until
interrupted. A failed write or read halts the demo.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}
	o.AddFlags(cmd)
	cmd.Flags().Uint32Var(&o.addr, "addr", 0, "memory address (default 0x00543210)")
	cmd.Flags().StringVar(&o.data, "data", "", `string to write (default "MikroE\r\n")`)
	return cmd
}

func run(cmd *cobra.Command, o *options) error {
	env, err := demo.Setup(cmd, &o.Options, func(cfg *board.Config) {
		f := cmd.Flags()
		if f.Changed("socket") {
			cfg.EERAM2.Socket = o.Socket
		}
		if f.Changed("topic") {
			cfg.EERAM2.Topic = o.Topic
		}
		if f.Changed("addr") {
			cfg.EERAM2.Addr = o.addr
		}
		if f.Changed("data") {
			cfg.EERAM2.Data = o.data + "\r\n\x00"
		}
	})
	if err != nil {
		return err
	}
	defer env.Close()
	conf := env.Config.EERAM2
	log := env.Log.Sugar()

	log.Info("---- Application Init ----")
	conn, err := env.Board.SPI(conf.Socket, conf.SpeedHz)
	if err != nil {
		return err
	}
	socket, err := env.Board.Socket(conf.Socket)
	if err != nil {
		return err
	}
	hold, err := env.Board.Pin(socket.RST)
	if err != nil {
		return err
	}
	dev, err := eeram2.New(conn, eeram2.Opts{Hold: hold, Logger: log.Debugf})
	if err != nil {
		return err
	}

	if err := dev.SetHold(false); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := dev.SetWriteEnable(true); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)

	m := &memoryDemo{
		mem:    dev,
		log:    log,
		topic:  conf.Topic,
		addr:   conf.Addr,
		data:   []byte(conf.Data),
		settle: 100 * time.Millisecond,
	}
	if env.Pub != nil {
		m.pub = env.Pub
	}
	return demo.Run(cmd.Context(), log, o.Count, conf.Period, m.task)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "eeram2: %s.\n", err)
		os.Exit(1)
	}
}
