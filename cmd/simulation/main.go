package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

type options struct {
	url       string
	accounts  int
	rounds    int
	interval  time.Duration
	timeout   time.Duration
	concat    float64
	workers   int
	seed      int64
	ingestKey string
	apiKey    string
	apiSecret string
}

func main() {
	var opts options

	app := &cli.App{
		Name:  "simulation",
		Usage: "replay synthetic terminal telemetry against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "server base URL", Destination: &opts.url},
			&cli.IntFlag{Name: "accounts", Value: 20, Usage: "number of synthetic terminals", Destination: &opts.accounts},
			&cli.IntFlag{Name: "rounds", Value: 10, Usage: "reporting rounds, 0 runs until interrupted", Destination: &opts.rounds},
			&cli.DurationFlag{Name: "interval", Value: 5 * time.Second, Usage: "time between rounds", Destination: &opts.interval},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "per-request timeout", Destination: &opts.timeout},
			&cli.Float64Flag{Name: "concat", Value: 0.2, Usage: "share of rounds sent as one concatenated body", Destination: &opts.concat},
			&cli.IntFlag{Name: "workers", Value: 5, Usage: "concurrent senders", Destination: &opts.workers},
			&cli.Int64Flag{Name: "seed", Usage: "random seed, 0 picks one", Destination: &opts.seed},
			&cli.StringFlag{Name: "ingest-key", EnvVars: []string{"MT4_AUTH_INGEST_KEY"}, Usage: "X-API-Key for ingestion", Destination: &opts.ingestKey},
			&cli.StringFlag{Name: "api-key", EnvVars: []string{"MT4_AUTH_API_KEY"}, Usage: "dashboard API key", Destination: &opts.apiKey},
			&cli.StringFlag{Name: "api-secret", EnvVars: []string{"MT4_AUTH_API_SECRET"}, Usage: "dashboard API secret", Destination: &opts.apiSecret},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return simulate(ctx, opts)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}
}

func simulate(ctx context.Context, opts options) error {
	if opts.seed == 0 {
		opts.seed = time.Now().UnixNano()
	}
	if opts.workers <= 0 {
		opts.workers = 1
	}
	rng := rand.New(rand.NewSource(opts.seed))

	simClient := newSimulationClient(opts.url, opts.ingestKey, opts.timeout)
	if opts.apiKey != "" {
		if err := simClient.authenticate(opts.apiKey, opts.apiSecret); err != nil {
			return err
		}
	}

	accounts := newFakeAccounts(rng, opts.accounts)
	log.Info().
		Int("accounts", len(accounts)).
		Int("rounds", opts.rounds).
		Dur("interval", opts.interval).
		Int64("seed", opts.seed).
		Msg("Starting simulation")

	start := time.Now()
rounds:
	for round := 1; opts.rounds == 0 || round <= opts.rounds; round++ {
		for _, a := range accounts {
			a.step(rng)
		}
		batched := rng.Float64() < opts.concat
		runRound(simClient, accounts, batched, opts.workers)

		if n, err := simClient.listAccounts(); err != nil {
			log.Error().Err(err).Msg("Failed to list accounts")
		} else {
			log.Info().Int("round", round).Int("accounts", n).Bool("batched", batched).Msg("Round complete")
		}
		if err := simClient.analytics(); err != nil {
			log.Error().Err(err).Msg("Failed to fetch analytics")
		}

		if round == opts.rounds {
			break
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Interrupted")
			break rounds
		case <-time.After(opts.interval):
		}
	}

	log.Info().Dur("duration", time.Since(start).Round(time.Millisecond)).Msg("Simulation completed")
	printStats(os.Stdout, statsOrder, simClient.stats)
	return nil
}

// runRound sends every account once. A batched round posts all reports in
// one concatenated body; otherwise workers post them individually.
func runRound(simClient *simulationClient, accounts []*fakeAccount, batched bool, workers int) {
	reports := make([][]byte, 0, len(accounts))
	for _, a := range accounts {
		body, err := a.payload()
		if err != nil {
			log.Error().Err(err).Int64("account_number", a.number).Msg("Failed to encode report")
			continue
		}
		reports = append(reports, body)
	}

	if batched {
		if err := simClient.ingest(reports); err != nil {
			log.Error().Err(err).Int("reports", len(reports)).Msg("Batched report failed")
		}
		return
	}

	jobs := make(chan []byte)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for body := range jobs {
				if err := simClient.ingest([][]byte{body}); err != nil {
					log.Error().Err(err).Int("worker_id", workerID).Msg("Report failed")
				}
			}
		}(i)
	}
	for _, body := range reports {
		jobs <- body
	}
	close(jobs)
	wg.Wait()
}
