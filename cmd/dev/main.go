package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botscan/adapters/api"
	"botscan/adapters/api/stub"
	"botscan/adapters/postgres"
	"botscan/internal"
	"botscan/internal/migration"
	"botscan/internal/testkit"
	"botscan/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "botscan-dev",
		Short: "botscan development tools",
	}

	rootCmd.AddCommand(
		newStubCmd(),
		newSeedCmd(),
		newSmokeTestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newStubCmd() *cobra.Command {
	var addr string
	var delay time.Duration
	var strict bool
	var failLookup []string

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a fake remote analysis service",
		Long: `Serve /api/predict, /api/generate-report and /api/feedback from fixtures.
Any username is accepted unless --strict is set; usernames containing "bot"
are classified as bots.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := stub.New(!strict)
			s.SetDelay(delay)
			for _, name := range []string{"spez", "kn0thing", "automoderator_bot"} {
				s.AddProfile(testkit.Profile(name))
			}
			for _, name := range failLookup {
				s.FailLookup(name, stub.Failure{Status: http.StatusInternalServerError, Message: "upstream lookup failed"})
			}

			srv := &http.Server{Addr: addr, Handler: middleware.Logger(s), ReadHeaderTimeout: 5 * time.Second}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Printf("stub remote listening on http://%s/api", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:5000", "listen address")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay every response")
	cmd.Flags().BoolVar(&strict, "strict", false, "return 404 for unknown usernames")
	cmd.Flags().StringSliceVar(&failLookup, "fail-lookup", nil, "usernames whose lookup fails")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed [database-url]",
		Short: "Generate seed scan history for development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateSeedData(cmd.Context(), args[0], count)
		},
	}
	cmd.Flags().IntVar(&count, "count", 3, "scans per fixture account")
	return cmd
}

func generateSeedData(ctx context.Context, databaseURL string, count int) error {
	fmt.Println("Generating seed data...")

	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return err
	}
	repo := postgres.NewScanRecordRepository(db)

	now := time.Now().UTC()
	saved := 0
	for _, name := range []string{"alice", "bob", "spambot_3000", "newsbot"} {
		profile := testkit.Profile(name)
		report := testkit.ReportFor(profile)
		for i := 0; i < count; i++ {
			at := now.Add(-time.Duration(count-i) * time.Hour)
			if err := repo.SaveScan(ctx, models.NewScanRecord(name, profile, report, at)); err != nil {
				return err
			}
			saved++
		}
	}

	fmt.Printf("Seeded %d scans\n", saved)
	return nil
}

func newSmokeTestCmd() *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "smoke [usernames...]",
		Short: "Run smoke tests against a remote analysis service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"alice", "spambot_3000"}
			}
			return runSmokeTests(cmd.Context(), remote, args)
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "http://localhost:5000/api", "remote service base URL")
	return cmd
}

func runSmokeTests(ctx context.Context, remote string, usernames []string) error {
	fmt.Println("Running smoke tests...")

	cfg := api.DefaultClientConfig()
	cfg.BaseURL = remote
	client := api.NewClient(cfg, internal.NewLogger(internal.LogLevelWarn))

	failed := 0
	for _, name := range usernames {
		start := time.Now()
		profile, err := client.LookupProfile(ctx, name)
		if err != nil {
			fmt.Printf("  FAIL %s lookup: %v\n", name, err)
			failed++
			continue
		}
		report, err := client.GenerateReport(ctx, profile)
		if err != nil {
			fmt.Printf("  FAIL %s report: %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("  ok   %s -> %s (bot %d / human %d) in %v\n",
			name, report.Classification().Label(), report.BotConfidence, report.HumanConfidence, time.Since(start).Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d smoke checks failed", failed, len(usernames))
	}
	fmt.Println("Smoke tests passed")
	return nil
}
