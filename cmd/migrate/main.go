package main

import (
	"fmt"
	"os"

	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/database"
	"github.com/mohdghattas/mt4-online-server/internal/database/migrations"
	"github.com/mohdghattas/mt4-online-server/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "apply database schema migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"MT4_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply every pending migration",
				Action: up,
			},
			{
				Name:   "status",
				Usage:  "list applied and pending migrations",
				Action: status,
			},
		},
		DefaultCommand: "up",
	}

	if err := app.Run(os.Args); err != nil {
		zlog.Fatal().Err(err).Msg("migrate failed")
	}
}

func open(c *cli.Context) (*gorm.DB, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Production())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return database.NewDatabase(cfg.DB)
}

func up(c *cli.Context) error {
	db, err := open(c)
	if err != nil {
		return err
	}
	defer database.Close(db)

	applied, err := migrations.Run(c.Context, db)
	if err != nil {
		return err
	}
	zlog.Info().Int("applied", len(applied)).Msg("schema up to date")
	return nil
}

func status(c *cli.Context) error {
	db, err := open(c)
	if err != nil {
		return err
	}
	defer database.Close(db)

	applied, err := migrations.Applied(c.Context, db)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(c.App.Writer, "applied  %03d_%s  %s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}

	pending, err := migrations.Pending(c.Context, db)
	if err != nil {
		return err
	}
	for _, m := range pending {
		fmt.Fprintf(c.App.Writer, "pending  %03d_%s\n", m.Version, m.Name)
	}
	return nil
}
