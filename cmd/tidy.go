/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"recursos/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Remove expired pages from the page cache",
		Description: `Tidy up the database by removing cached pages whose TTL has passed.

		The server does this periodically; the command can be run from cron
		when the server runs with a long tidy interval.`,
		Flags: []cli.Flag{configFlag(), databaseFlag()},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			pages, err := db.NewPages(cfg.Database)
			if err != nil {
				return err
			}
			defer pages.Close()

			removed, err := pages.Tidy(ctx.Context)
			if err != nil {
				return err
			}
			fmt.Println("Removed expired pages:", removed)
			return nil
		},
	}
}
