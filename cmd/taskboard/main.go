package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("load .env")
	}

	app := &cli.App{
		Name:  "taskboard",
		Usage: "Collaborative task board with live notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"TASKBOARD_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, console)",
				EnvVars: []string{"TASKBOARD_LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			setupLogger(c.String("log-level"), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Apply migrations and start the HTTP and push-channel server",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations and exit",
				Action: runMigrate,
			},
			watchCommand(),
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("taskboard")
	}
}

func setupLogger(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "console" || format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
