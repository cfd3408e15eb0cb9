package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/flume-dsp/flume/config"
)

type runCommand struct {
	config string
	async  bool
}

// Implement command interface
func (cmd *runCommand) Name() string {
	return "run"
}

func (cmd *runCommand) Help() string {
	return "Run a pipeline described in a yaml file"
}

func (cmd *runCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to pipeline yaml (required)")
	fs.BoolVar(&cmd.async, "async", false, "run every node on its own goroutine")
}

func (cmd *runCommand) Run() error {
	if cmd.config == "" {
		return errors.New("missing -config required flag")
	}

	cfg, err := config.Load(cmd.config)
	if err != nil {
		return err
	}
	p, err := cfg.Build()
	if err != nil {
		return err
	}
	if err = p.Configure(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cmd.async {
		// the concurrent driver starts from Configured on its own.
		a, err := p.Async(ctx)
		if err != nil {
			return err
		}
		err = a.Await()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	} else {
		if err = p.Start(); err != nil {
			return err
		}
		err = p.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	if err = p.TearDown(); err != nil {
		return err
	}
	fmt.Printf("Pipeline %s done\n", cfg.Name)
	return nil
}
