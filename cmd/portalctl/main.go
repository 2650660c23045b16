// Package main implements portalctl, the resume portal operator tool.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if err := newApp().Run(ctx, os.Args); err != nil {
		logger.Error("portalctl failed", "err", err)
		os.Exit(1)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env",
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "portalctl",
		Usage: "inspect embeddings, resume extraction and portal events",
		Commands: []*cli.Command{
			{
				Name:      "embed",
				Usage:     "embed TEXT and report dimensions, norm and which path produced it",
				ArgsUsage: "TEXT",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{Name: "vector", Usage: "print the full vector"},
				},
				Action: embedAction,
			},
			{
				Name:      "sections",
				Usage:     "split a resume (.pdf or text file) into sections",
				ArgsUsage: "FILE",
				Action:    sectionsAction,
			},
			{
				Name:      "skills",
				Usage:     "extract skills from TEXT, or from --file",
				ArgsUsage: "[TEXT]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "read the resume from a .pdf or text file"},
				},
				Action: skillsAction,
			},
			{
				Name:      "summarize",
				Usage:     "summarize a resume file with Gemini",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "model", Usage: "Gemini model name"},
				},
				Action: summarizeAction,
			},
			{
				Name:      "enqueue",
				Usage:     "queue a resume file as an application for the ingest worker",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "nats", Usage: "NATS url (default NATS_URL or nats://localhost:4222)"},
					&cli.StringFlag{Name: "id", Usage: "application id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "applicant name", Required: true},
					&cli.StringFlag{Name: "email", Usage: "applicant email", Required: true},
					&cli.StringFlag{Name: "linkedin", Usage: "LinkedIn profile url"},
				},
				Action: enqueueAction,
			},
			{
				Name:  "events",
				Usage: "tail embedding fallback and application events from NATS",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "nats", Usage: "NATS url (default NATS_URL or nats://localhost:4222)"},
				},
				Action: eventsAction,
			},
		},
	}
}
