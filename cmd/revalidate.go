/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"recursos/db"
	"recursos/models"
	"recursos/revalidate"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var documentTypes = []models.DocumentType{
	models.DocumentPost,
	models.DocumentContentUpgrade,
	models.DocumentTheme,
	models.DocumentInterest,
	models.DocumentAuthor,
	models.DocumentSeries,
}

func revalidateCmd() *cli.Command {
	return &cli.Command{
		Name:  "revalidate",
		Usage: "Invalidate cached pages for a document",
		Description: `Runs the same invalidations the CMS webhook would for a document
of the given type and slug, without a signature.

Prompts for the document type and slug when they are not given as flags.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Document type: post, contentUpgrade, theme, interest, author or series",
			},
			&cli.StringFlag{
				Name:    "slug",
				Aliases: []string{"s"},
				Usage:   "Document slug, if it has one",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			docType := ctx.String("type")
			if docType == "" {
				docType, err = prompt.New().Ask("Document type:").Choose(
					lo.Map(documentTypes, func(t models.DocumentType, _ int) string { return string(t) }),
				)
				if err != nil {
					return err
				}
			}

			slug := ctx.String("slug")
			if !ctx.IsSet("slug") {
				slug, err = prompt.New().Ask("Slug (empty for none):").Input("")
				if err != nil {
					return err
				}
			}

			pages, err := db.NewPages(cfg.Database)
			if err != nil {
				return err
			}
			defer pages.Close()

			dispatcher := revalidate.NewDispatcher("", pages)
			if err := dispatcher.Dispatch(ctx.Context, models.DocumentType(docType), slug); err != nil {
				return fmt.Errorf("failed to revalidate %s: %w", docType, err)
			}

			for _, op := range revalidate.Plan(models.DocumentType(docType), slug) {
				log.WithField(string(op.Kind), op.Target).Info("Invalidated")
			}
			return nil
		},
	}
}
