/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"recursos/blog"
	"recursos/db"
	"recursos/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func viewCmd() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Print the blog view for a filter state as JSON",
		Description: `Derives the blog listing from the content store the same way the
server does and prints it to stdout as a single JSON object.

The flags are applied as the topic, intent and search transitions in
that order, so a search query clears the other two.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			&cli.StringFlag{
				Name:  "topic",
				Usage: "Theme slug to filter by",
			},
			&cli.StringFlag{
				Name:  "intent",
				Usage: "Intent to filter by: aprender, aplicar or decidir",
			},
			&cli.StringFlag{
				Name:  "q",
				Usage: "Free text search",
			},
		},
		Action: func(ctx *cli.Context) error {
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			state := blog.State{}
			if topic := ctx.String("topic"); topic != "" {
				state = state.ToggleTopic(topic)
			}
			if name := ctx.String("intent"); name != "" {
				intent, ok := models.ParseIntent(name)
				if !ok {
					return fmt.Errorf("unknown intent %q", name)
				}
				state = state.ToggleIntent(intent)
			}
			state = state.WithSearch(ctx.String("q"))

			reader, err := db.NewReader(cfg.Database)
			if err != nil {
				return err
			}
			defer reader.Close()

			posts, err := reader.GetPosts(ctx.Context)
			if err != nil {
				return err
			}
			topics, err := reader.GetTopics(ctx.Context)
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(blog.DeriveView(posts, topics, state))
		},
	}
}
