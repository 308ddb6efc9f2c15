package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/react-agent/internal/config"
	"github.com/MimeLyc/react-agent/internal/httpapi"
	"github.com/MimeLyc/react-agent/internal/service"
	"github.com/MimeLyc/react-agent/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			c, err := newComponents(cfg, verboseWriter(cmd, flags))
			if err != nil {
				return err
			}
			defer c.Close()

			engine := cron.New()
			var sched scheduler
			if cfg.Schedule.CronExpr != "" {
				sched = newScheduledQuestion(cfg, c.svc, engine, cmd)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := httpapi.NewServer(c.svc,
				httpapi.WithLoopTimeout(time.Duration(cfg.LLM.Timeout)*time.Second),
				httpapi.WithDefaultMaxLoops(cfg.Agent.MaxLoops),
			)
			return runWithComponents(ctx, cfg, sched, engine, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from HTTP_ADDR)")
	return cmd
}

func newScheduleCmd(flags *rootFlags) *cobra.Command {
	var (
		expr string
		now  bool
	)
	cmd := &cobra.Command{
		Use:   "schedule [question]",
		Short: "Ask a question on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if expr != "" {
				cfg.Schedule.CronExpr = expr
			}
			if len(args) > 0 {
				cfg.Schedule.Question = strings.Join(args, " ")
			}
			if cfg.Schedule.CronExpr == "" {
				return fmt.Errorf("a cron expression is required, set --cron or SCHEDULE_CRON")
			}

			c, err := newComponents(cfg, verboseWriter(cmd, flags))
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine := cron.New()
			sq := newScheduledQuestion(cfg, c.svc, engine, cmd)
			if err := sq.Schedule(ctx); err != nil {
				return err
			}
			if now {
				if _, err := sq.Trigger(ctx); err != nil {
					service.LogError(err)
				}
			}

			engine.Start()
			<-ctx.Done()

			log.Info("Waiting for scheduled runs to finish")
			<-engine.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression (default from SCHEDULE_CRON)")
	cmd.Flags().BoolVar(&now, "now", false, "Also ask once immediately")
	return cmd
}

func newScheduledQuestion(cfg *config.Config, svc *service.QAService, engine *cron.Cron, cmd *cobra.Command) *service.ScheduledQuestion {
	sq := service.NewScheduledQuestion(svc, engine, cfg.Schedule.CronExpr, cfg.Schedule.Question, cfg.Agent.MaxLoops)
	out := cmd.OutOrStdout()
	sq.OnResult(func(result *service.Result) {
		printOutcome(out, result.Outcome)
	})
	return sq
}

// runWithComponents schedules the cron question, starts the cron engine and
// serves HTTP until ctx is done or the server fails. Scheduled runs still in
// progress get until the shutdown timeout to finish.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, srv httpServer) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return err
		}
	}
	engine.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopped := engine.Stop()
	if serveErr == nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		serveErr = <-errCh
	}

	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
		log.Warn("Scheduled run still in progress at shutdown")
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", serveErr)
	}
	log.Info("HTTP API stopped")
	return nil
}
