package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"botscan/internal/config"
	"botscan/internal/container"
	"botscan/internal/errors"
	"botscan/internal/export"
	"botscan/internal/feedback"
	"botscan/internal/session"
	"botscan/models"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "botscan",
		Short:         "Analyze accounts against the bot detection service from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newFeedbackCmd(),
		newHistoryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errors.UserMessage(err))
		os.Exit(1)
	}
}

func newContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(ctx, cfg)
}

func newAnalyzeCmd() *cobra.Command {
	var exportPath string
	var format string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "analyze [username]",
		Short: "Run a full analysis and stream the console narration",
		Long: `Look up the account, generate its report and print the console log as it
is narrated. With --export the finished report is written to a file.

Example: botscan analyze spez --export spez.html --format html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := newContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			id, o := c.Sessions.Create()
			events, unsubscribe := c.SSEHub.Subscribe(id)
			defer unsubscribe()

			if _, err := o.StartAnalysis(ctx, args[0]); err != nil {
				return err
			}
			final, err := stream(ctx, o, events)
			if err != nil {
				return err
			}
			if final.Kind == session.KindFailed {
				return errors.New(errors.CodeExternalService, final.Message)
			}

			printSummary(os.Stdout, final)
			if exportPath == "" {
				return nil
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			view := o.Snapshot()
			artifact, err := c.Exporter.Export(view, f)
			if err != nil {
				return err
			}
			if err := os.WriteFile(exportPath, artifact.Data, 0o644); err != nil {
				return errors.Wrap(err, "failed to write export")
			}
			fmt.Printf("wrote %s (%d bytes)\n", exportPath, len(artifact.Data))
			return nil
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "write the report to this file")
	cmd.Flags().StringVar(&format, "format", "html", "export format: markdown, html or xlsx")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long")
	return cmd
}

// stream prints log lines until the session is terminal and its narration
// has drained.
func stream(ctx context.Context, o *session.Orchestrator, events <-chan session.Event) (session.State, error) {
	var final *session.State
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return o.CurrentState(), nil
			}
			switch ev.Type {
			case session.EventLog:
				fmt.Printf("[%s] %s\n", ev.Entry.EmittedAt.Format("15:04:05.000"), ev.Entry.Text)
			case session.EventState:
				if ev.State.Terminal() {
					st := *ev.State
					final = &st
				}
			}
		case <-time.After(50 * time.Millisecond):
			if final != nil && !o.Narrating() {
				return *final, nil
			}
		case <-ctx.Done():
			return session.State{}, errors.Wrap(ctx.Err(), "analysis did not finish")
		}
	}
}

func printSummary(w io.Writer, st session.State) {
	r := st.Report
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  account:    %s\n", st.Username)
	fmt.Fprintf(w, "  verdict:    %s\n", st.Classification.Label())
	fmt.Fprintf(w, "  bot:        %d%%\n", r.BotConfidence)
	fmt.Fprintf(w, "  human:      %d%%\n", r.HumanConfidence)
	fmt.Fprintf(w, "  activity:   %.1f\n", r.ActivityScore)
	if n := r.SuspiciousPatterns(); n > 0 {
		fmt.Fprintf(w, "  suspicious: %d pattern(s)\n", n)
	}
}

func newFeedbackCmd() *cobra.Command {
	var verdict, comment, prediction string

	cmd := &cobra.Command{
		Use:   "feedback [username]",
		Short: "Tell the service whether a verdict was right",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			draft := &feedback.Draft{
				Username:   args[0],
				Verdict:    models.Verdict(verdict),
				Comment:    comment,
				Prediction: prediction,
			}
			ack, err := c.Feedback.Submit(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Println(ack.Message)
			fmt.Println(feedback.SuccessNotice)
			return nil
		},
	}

	cmd.Flags().StringVar(&verdict, "verdict", "", "accurate, inaccurate or unsure")
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	cmd.Flags().StringVar(&prediction, "prediction", "", "the verdict being rated, e.g. BOT")
	_ = cmd.MarkFlagRequired("verdict")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [username]",
		Short: "Show stored scans of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			summary, err := c.History.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			scans, err := c.History.Recent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(map[string]interface{}{
				"backend": c.History.Backend(),
				"summary": summary,
				"scans":   scans,
			}, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of scans to list")
	return cmd
}
