/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"io/fs"

	"recursos/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/site.toml",
		Usage:   "Path to site configuration file",
		EnvVars: []string{"RECURSOS_CONFIG"},
	}
}

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Usage:   "SQLite database file location",
		EnvVars: []string{"RECURSOS_DATABASE"},
	}
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and lets flags override the file
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("config", ctx.String("config")).Warn("Config file not found, using defaults")
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("database") {
		cfg.Database = ctx.String("database")
	}
	if ctx.IsSet("port") {
		cfg.Server.Port = ctx.Int("port")
	}
	if ctx.IsSet("hostname") {
		cfg.Server.Hostname = ctx.String("hostname")
	}
	if ctx.IsSet("webhook-secret") {
		cfg.Webhook.Secret = ctx.String("webhook-secret")
	}
	if ctx.IsSet("cms-token") {
		cfg.CMS.Token = ctx.String("cms-token")
	}
	return cfg, nil
}
