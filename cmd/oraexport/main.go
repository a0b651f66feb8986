package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmidev/oraexport/internal/app"
	"github.com/semmidev/oraexport/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := newFlagSet(os.Stdout)
	if err := opts.parse(args); err != nil {
		if errors.Is(err, errHelp) {
			return 0
		}
		fmt.Printf("Error: %v\n", err)
		opts.fs.Usage()
		return 1
	}

	cfg, err := config.Load(opts.configPath, opts.fs)
	if err != nil {
		fmt.Printf("Error: load config: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: initialize app: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	if opts.list {
		if err := application.ListInstances(ctx, os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		return 0
	}

	req := opts.request(cfg)

	if opts.schedule != "" {
		if err := application.RunScheduled(ctx, req, opts.schedule); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		return 0
	}

	report, err := application.RunOnce(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	fmt.Println(report.Body())
	return 0
}
