package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/handler"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "recoveryctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "recoveryctl",
		Usage: "manual control of room recovery",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "base URL of the room service",
				Sources: cli.EnvVars("RECOVERYCTL_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token with the admin role",
				Sources: cli.EnvVars("RECOVERYCTL_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Usage:   "mint a short-lived admin token with this secret instead of --token",
				Sources: cli.EnvVars("JWT_SECRET"),
			},
			&cli.StringFlag{
				Name:    "jwt-issuer",
				Sources: cli.EnvVars("JWT_ISSUER"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 2 * time.Minute,
				Usage: "request timeout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "recover-all",
				Usage: "run a recovery sweep over all stale rooms",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTrigger(ctx, cmd, out, handler.RecoveryRequest{Action: handler.ActionRecoverAll})
				},
			},
			{
				Name:      "recover-room",
				Usage:     "recover a single room",
				ArgsUsage: "<room-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					roomID, err := uuid.Parse(cmd.Args().First())
					if err != nil {
						return fmt.Errorf("room id must be a UUID: %w", err)
					}
					return runTrigger(ctx, cmd, out, handler.RecoveryRequest{Action: handler.ActionRecoverRoom, RoomID: roomID.String()})
				},
			},
			{
				Name:  "cleanup",
				Usage: "purge recovery records older than the retention window",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTrigger(ctx, cmd, out, handler.RecoveryRequest{Action: handler.ActionCleanup})
				},
			},
			{
				Name:  "stats",
				Usage: "show recovery statistics",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					client, err := clientFrom(cmd)
					if err != nil {
						return err
					}
					stats, err := client.stats(ctx)
					if err != nil {
						return err
					}
					printStats(out, stats)
					return nil
				},
			},
		},
	}
}

func clientFrom(cmd *cli.Command) (*adminClient, error) {
	token := cmd.String("token")
	if token == "" {
		secret := cmd.String("jwt-secret")
		if secret == "" {
			return nil, errors.New("either --token or --jwt-secret is required")
		}
		var err error
		token, err = mintAdminToken(secret, cmd.String("jwt-issuer"), uuid.New(), 5*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("mint admin token: %w", err)
		}
	}
	return newAdminClient(cmd.String("server"), token, cmd.Duration("timeout")), nil
}

func runTrigger(ctx context.Context, cmd *cli.Command, out io.Writer, req handler.RecoveryRequest) error {
	client, err := clientFrom(cmd)
	if err != nil {
		return err
	}
	resp, err := client.trigger(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	printResults(out, resp.Results)
	return nil
}

func printResults(out io.Writer, results []domain.RecoveryResult) {
	if len(results) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tREASON\tRECOVERED\tRETIRED\tNEW HOST\tERROR")
	for _, r := range results {
		newHost := "-"
		if r.NewHostUserID != nil {
			newHost = r.NewHostUserID.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\t%s\n", r.RoomID, r.Reason, r.Recovered, r.Retired, newHost, r.Error)
	}
	w.Flush()
}

func printStats(out io.Writer, s *domain.RecoveryStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	lastSweep := "never"
	if s.LastSweepAt != nil {
		lastSweep = s.LastSweepAt.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "total rooms\t%d\n", s.TotalRooms)
	fmt.Fprintf(w, "stale rooms\t%d\n", s.StaleRooms)
	fmt.Fprintf(w, "recovered (24h)\t%d\n", s.RecoveredLast24h)
	fmt.Fprintf(w, "retired (24h)\t%d\n", s.RetiredLast24h)
	fmt.Fprintf(w, "last sweep\t%s\n", lastSweep)
	fmt.Fprintf(w, "sweeps since start\t%d\n", s.TotalSweeps)
	w.Flush()
}
