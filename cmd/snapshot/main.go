package main

import (
	"fmt"
	"os"

	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/database"
	"github.com/mohdghattas/mt4-online-server/internal/history"
	"github.com/mohdghattas/mt4-online-server/internal/logging"
)

// snapshot copies the current account table into history once. It is meant
// for external schedulers when the server's own history job is disabled.
func main() {
	app := &cli.App{
		Name:  "snapshot",
		Usage: "capture the current account state into history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"MT4_CONFIG"},
			},
			&cli.Int64Flag{
				Name:  "account",
				Usage: "capture only this account number",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		zlog.Fatal().Err(err).Msg("snapshot failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Production())
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.NewDatabase(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.EnsureSchema(c.Context, db, false); err != nil {
		return err
	}

	loc, err := cfg.History.Location()
	if err != nil {
		return err
	}

	result, err := history.NewService(db, loc).Capture(c.Context, c.Int64("account"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "captured %d accounts in batch %s\n", result.Captured, result.BatchID)
	return nil
}
