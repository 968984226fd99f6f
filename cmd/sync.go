/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"recursos/cms"
	"recursos/db"

	"github.com/urfave/cli/v2"
)

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync content from the CMS",
		Description: `Fetches every published post and theme from the CMS and replaces
the content store with them. Cached pages are left alone; run revalidate
afterwards to drop them.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			&cli.StringFlag{
				Name:    "cms-token",
				Usage:   "CMS API read token",
				EnvVars: []string{"RECURSOS_CMS_TOKEN"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if !cfg.CMSEnabled() {
				return errors.New("please specify a cms project_id in the config")
			}

			if err := db.Migrate(cfg.Database); err != nil {
				return err
			}
			writer, err := db.NewWriter(cfg.Database)
			if err != nil {
				return err
			}
			defer writer.Close()

			return cms.NewSyncer(cms.NewClient(cfg.CMS), writer).SyncAll(ctx.Context)
		},
	}
}
