package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kevin07696/automated-charge/internal/config"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/pkg/observability"
)

// withApp loads configuration, builds the app and runs fn with a context
// cancelled on SIGINT or SIGTERM
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize charger", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func chargeCmd() *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "charge",
		Short: "Charge one request and record it in the ledger",
		Long: `Charge reads one JSON charge request, charges the payer's saved payment
method once and records the transaction in its settlement batch.

Exit status is 1 when nothing was charged and 2 when the charge succeeded
but could not be fully recorded and must be reconciled by hand.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(requestPath)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				txn, err := a.processor.ProcessCharge(ctx, req)
				werr := writeResult(cmd.OutOrStdout(), newResult(txn, err))
				if code := exitCodeFor(err); code != exitOK {
					return &exitError{code: code, err: werr}
				}
				return werr
			})
		},
	}
	cmd.Flags().StringVarP(&requestPath, "file", "f", "-", "charge request JSON file, - for stdin")
	return cmd
}

func checkValidCmd() *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "check-valid",
		Short: "Validate a request without charging",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(requestPath)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.processor.CheckValid(ctx, req)
				if werr := writeResult(cmd.OutOrStdout(), newResult(nil, err)); werr != nil {
					return werr
				}
				if err != nil {
					return &exitError{code: exitFailure}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&requestPath, "file", "f", "-", "charge request JSON file, - for stdin")
	return cmd
}

func checkRepeatCmd() *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "check-repeat",
		Short: "Report whether an equal charge was recorded recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(requestPath)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				repeat, err := a.processor.CheckRepeat(ctx, req)
				r := repeatResult(repeat, err)
				if werr := writeResult(cmd.OutOrStdout(), r); werr != nil {
					return werr
				}
				if !r.OK {
					return &exitError{code: exitFailure}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&requestPath, "file", "f", "-", "charge request JSON file, - for stdin")
	return cmd
}

func batchCmd() *cobra.Command {
	var (
		requestPath string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Charge newline-delimited JSON requests",
		Long: `Batch charges every request in a JSON Lines file, writing one result per
line. Results carry the 1-based input line and may be written out of order
when more than one worker is used.

Declines and validation failures are reported per line. Exit status is 2 when
any charge requires reconciliation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}

			var in io.Reader = os.Stdin
			if requestPath != "-" {
				f, err := os.Open(requestPath)
				if err != nil {
					return fmt.Errorf("open requests: %w", err)
				}
				defer f.Close()
				in = f
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.db.StartPoolMonitoring(ctx, 30*time.Second)
				if a.cfg.Metrics.Addr != "" {
					server := observability.StartMetricsServer(a.cfg.Metrics.Addr, a.health, a.logger)
					defer func() { _ = observability.ShutdownMetricsServer(server) }()
				}

				summary, err := runBatch(ctx, a.processor, in, cmd.OutOrStdout(), workers)
				a.logger.Info("Batch finished",
					zap.Int("requests", summary.total),
					zap.Int("charged", summary.charged),
					zap.Int("failed", summary.failed),
					zap.Int("reconcile", summary.reconcile),
					zap.Error(err),
				)
				return batchOutcome(summary, err)
			})
		},
	}
	cmd.Flags().StringVarP(&requestPath, "file", "f", "-", "JSON Lines file of charge requests, - for stdin")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "concurrent charges")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database and lock backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				status := a.health.Check(ctx)
				names := make([]string, 0, len(status.Checks))
				for name := range status.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, status.Checks[name])
				}
				if status.Status != "healthy" {
					return &exitError{code: exitFailure}
				}
				return nil
			})
		},
	}
}

// batchOutcome keeps the reconciliation exit status even when the batch also
// failed to read its input or write its results
func batchOutcome(summary batchSummary, err error) error {
	if summary.reconcile > 0 {
		return &exitError{code: exitReconciliation, err: err}
	}
	return err
}

// charger is the part of *charge.Processor used by the batch runner
type charger interface {
	ProcessCharge(ctx context.Context, req domain.ChargeRequest) (*domain.Transaction, error)
}

type batchSummary struct {
	total     int
	charged   int
	failed    int
	reconcile int
}

type batchJob struct {
	line int
	req  domain.ChargeRequest
	err  error // decode failure, reported without charging
}

// runBatch stops reading input once ctx is cancelled. Charges already handed
// to a worker run to completion, bounded by the processor's attempt timeout.
func runBatch(ctx context.Context, p charger, in io.Reader, out io.Writer, workers int) (batchSummary, error) {
	chargeCtx := context.WithoutCancel(ctx)
	jobs := make(chan batchJob)
	var (
		mu       sync.Mutex
		summary  batchSummary
		wg       sync.WaitGroup
		writeErr error
	)

	emit := func(line int, txn *domain.Transaction, err error) {
		r := newResult(txn, err)
		r.Line = line

		mu.Lock()
		defer mu.Unlock()
		summary.total++
		switch {
		case err == nil:
			summary.charged++
		case r.Reconcile:
			summary.reconcile++
		default:
			summary.failed++
		}
		if err := writeResult(out, r); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("write result for line %d: %w", line, err)
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if job.err != nil {
					emit(job.line, nil, job.err)
					continue
				}
				txn, err := p.ProcessCharge(chargeCtx, job.req)
				emit(job.line, txn, err)
			}
		}()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	var readErr error
read:
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		job := batchJob{line: line}
		job.req, job.err = decodeRequest(strings.NewReader(text))

		select {
		case jobs <- job:
		case <-ctx.Done():
			break read
		}
	}
	if err := scanner.Err(); err != nil {
		readErr = fmt.Errorf("read requests: %w", err)
	}

	close(jobs)
	wg.Wait()
	return summary, errors.Join(readErr, writeErr)
}
