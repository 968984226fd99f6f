/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"recursos/cms"
	"recursos/db"
	"recursos/revalidate"
	"recursos/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the Recursos API",
		Description: `Starts the HTTP server on the configured port.

Runs migrations, syncs content from the CMS when one is configured, and
tidies expired pages from the page cache in the background. The CMS
revalidation webhook is served at POST /api/revalidate.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname where the server is running",
				EnvVars: []string{"RECURSOS_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"RECURSOS_PORT"},
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Usage:   "Shared secret the CMS sends with every webhook",
				EnvVars: []string{"RECURSOS_WEBHOOK_SECRET"},
			},
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

			if err := db.Migrate(cfg.Database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			reader, err := db.NewReader(cfg.Database)
			if err != nil {
				return err
			}
			defer reader.Close()

			writer, err := db.NewWriter(cfg.Database)
			if err != nil {
				return err
			}
			defer writer.Close()

			pages, err := db.NewPages(cfg.Database)
			if err != nil {
				return err
			}
			defer pages.Close()

			var opts []revalidate.Option
			if cfg.CMSEnabled() {
				syncer := cms.NewSyncer(cms.NewClient(cfg.CMS), writer)
				if err := syncer.SyncAll(ctx.Context); err != nil {
					log.Error("Initial content sync failed, serving stored content: ", err)
				}
				if cfg.Webhook.Refresh {
					opts = append(opts, revalidate.WithRefresher(syncer))
				}
			}
			if cfg.Webhook.Secret == "" {
				log.Warn("No webhook secret configured, revalidation requests are not authenticated")
			}

			app := server.Server(&server.ServerConfig{
				Content:         reader,
				Pages:           pages,
				CacheTTL:        cfg.CacheTTL(),
				Dispatcher:      revalidate.NewDispatcher(cfg.Webhook.Secret, pages, opts...),
				SignatureHeader: cfg.Webhook.SignatureHeader,
				AllowOrigins:    cfg.Server.AllowOrigins,
			})

			runCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				pages.RunTidy(runCtx, cfg.TidyInterval())
			}()

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-c
				log.Info("Gracefully shutting down...")
				cancel()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.Error("Error shutting down server: ", err)
				}
			}()

			log.WithFields(log.Fields{
				"hostname": cfg.Server.Hostname,
				"port":     cfg.Server.Port,
				"database": cfg.Database,
			}).Info("Starting server")

			err = app.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
			cancel()
			wg.Wait()
			return err
		},
	}
}
