// Package main is the sunprobe agent command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"go.sunprobe.dev/agent/logging"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagBoard    = "board"
	flagBus      = "bus"
	flagCount    = "count"
	flagInterval = "interval"
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "sunprobe",
		Usage:           "measure light and UV and upload it",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"SUNPROBE_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagBoard,
				Usage: "override the board model (linux or fake)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the measurement duty cycle",
				Action: RunAction,
			},
			{
				Name:  "read",
				Usage: "print sensor readings in a loop",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagCount,
						Usage: "stop after `N` readings, 0 reads forever",
					},
					&cli.DurationFlag{
						Name:  flagInterval,
						Usage: "time between readings",
						Value: defaultReadInterval,
					},
				},
				Action: ReadAction,
			},
			{
				Name:  "scan",
				Usage: "list the addresses answering on an I2C bus",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagBus,
						Usage: "name of the bus to scan, defaults to the first configured bus",
					},
				},
				Action: ScanAction,
			},
		},
		Action: RunAction,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logging.NewLogger("sunprobe").Error(err)
		stop()
		//nolint:gocritic
		os.Exit(1)
	}
}
