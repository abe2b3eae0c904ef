package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/cinetix/internal/app"
	"github.com/kirinyoku/cinetix/internal/config"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/paymentstep"
	"github.com/kirinyoku/cinetix/internal/postgres"
	"github.com/kirinyoku/cinetix/internal/realtime"
	"github.com/kirinyoku/cinetix/internal/redis"
	postgresrepo "github.com/kirinyoku/cinetix/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/cinetix/internal/repository/redis"
	"github.com/kirinyoku/cinetix/internal/service/orders"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func watchCmd(logger *slog.Logger) *cobra.Command {
	var (
		timeout time.Duration
		poll    time.Duration
		delay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <order-id>",
		Short: "Wait for the payment result of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool, err := postgres.New(ctx, app.PostgresConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb, err := redis.New(ctx, app.RedisConfig(cfg))
			if err != nil {
				return err
			}
			defer rdb.Close()

			ordersSvc := orders.New(postgresrepo.NewStore(pool).Orders(), nil)
			if _, err := ordersSvc.CurrentStatus(ctx, args[0]); err != nil {
				return err
			}

			hub := realtime.NewHub(0, nil)
			relay := realtime.NewRelay(redisrepo.NewOrderStatusPubSub(rdb, logger), hub, logger)

			bgCtx, stop := context.WithCancel(ctx)
			g, gCtx := errgroup.WithContext(bgCtx)
			g.Go(func() error { return hub.Run(gCtx) })
			g.Go(func() error { return relay.Run(gCtx) })

			w := &paymentstep.Waiter{
				Hub:           hub,
				Status:        ordersSvc,
				ApprovedDelay: delay,
				PollInterval:  poll,
				Timeout:       timeout,
				Logger:        logger,
				OnApproved: func(s domain.PaymentStatus) {
					fmt.Fprintf(cmd.OutOrStdout(), "order %s: payment %s\n", args[0], s)
				},
				OnRejected: func(s domain.PaymentStatus) {
					fmt.Fprintf(cmd.OutOrStdout(), "order %s: payment %s, retry the purchase\n", args[0], s)
				},
			}

			outcome, err := w.Wait(ctx, args[0])

			stop()
			_ = g.Wait()

			if err != nil {
				return err
			}
			if outcome != paymentstep.OutcomeApproved {
				return fmt.Errorf("order %s: %s", args[0], outcome)
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "Give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&poll, "poll", 10*time.Second, "Status poll interval (0 relies on push only)")
	cmd.Flags().DurationVar(&delay, "approved-delay", 1500*time.Millisecond, "Pause before reporting an approval")

	return cmd
}
