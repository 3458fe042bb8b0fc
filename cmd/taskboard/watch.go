package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/notify"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the push channel as one user and log notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Value:   "ws://localhost:8080/ws/events",
				Usage:   "Push channel endpoint",
				EnvVars: []string{"TASKBOARD_WATCH_URL"},
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User id to identify as",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "retention",
				Value: notify.DefaultRetention,
				Usage: "Notifications kept in memory (default from notify.retention)",
			},
		},
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	userID, err := uuid.Parse(c.String("user"))
	if err != nil {
		return fmt.Errorf("watch: --user: %w", err)
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	retention, err := watchRetention(c)
	if err != nil {
		return err
	}

	reducer := notify.NewReducer(userID, notify.WithRetention(retention))
	sub := notify.NewSubscriber(c.String("url"), reducer, func(n notify.Notification) {
		log.Info().
			Str("type", string(n.Type)).
			Str("task_id", n.TaskID.String()).
			Int("unread", reducer.UnreadCount()).
			Msg(n.Message)
	})

	log.Info().Str("url", c.String("url")).Str("user_id", userID.String()).Msg("watching")
	if err := sub.Run(ctx); err != nil {
		return err
	}

	log.Info().Int("notifications", reducer.Len()).Msg("watch ended")
	return nil
}

// watchRetention prefers the flag, then the notify section of the config.
func watchRetention(c *cli.Context) (int, error) {
	if c.IsSet("retention") {
		return c.Int("retention"), nil
	}
	n, err := config.LoadNotify()
	if err != nil {
		return 0, fmt.Errorf("watch: %w", err)
	}
	return n.Retention, nil
}
