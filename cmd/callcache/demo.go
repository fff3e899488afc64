package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krisalay/callcache"
	promadapter "github.com/krisalay/callcache/adapters/prometheus"
	"github.com/krisalay/callcache/config"
	"github.com/krisalay/callcache/types"
)

type loadFunc func() (*config.Config, *zap.Logger, error)

func newDemoCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through hits, eviction, retry and exhaustion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
		},
	}
}

func runDemo(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	collector := promadapter.NewCollector(reg)

	fmt.Fprintln(out, "\n==================== SYSTEM BOOT ====================")

	// ---------------- Memoized double ----------------
	doubleCfg := cfg.Wrapper("double")
	if !doubleCfg.Caching() {
		doubleCfg.TTL = 60 * time.Second
		doubleCfg.MaxSize = 2
	}
	fmt.Fprintf(out, "TTL             : %s\n", doubleCfg.TTL)
	fmt.Fprintf(out, "MAXSIZE         : %d\n", doubleCfg.MaxSize)
	fmt.Fprintf(out, "EVICTION POLICY : %s\n", doubleCfg.Eviction)

	var computed atomic.Int32
	double, err := callcache.Wrap("double", func(_ context.Context, x int) (int, error) {
		computed.Add(1)
		return x * 2, nil
	}, doubleCfg,
		callcache.WithLogger(logger),
		callcache.WithMetrics(collector.For("double")),
	)
	if err != nil {
		return err
	}
	defer double.Close()

	call := func(label string, x int) error {
		before := computed.Load()
		v, err := double.Invoke(ctx, x)
		if err != nil {
			return err
		}
		outcome := "HIT "
		if computed.Load() != before {
			outcome = "MISS"
		}
		fmt.Fprintf(out, "%-28s f(%d) = %d  [%s]\n", label, x, v, outcome)
		return nil
	}

	fmt.Fprintln(out, "\n==================== 1) CACHE MISS ====================")
	if err := call("first call", 1); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n==================== 2) CACHE HIT ====================")
	if err := call("repeat within ttl", 1); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n==================== 3) EVICTION ====================")
	if err := call("fill", 2); err != nil {
		return err
	}
	if err := call("fill", 3); err != nil {
		return err
	}
	if err := call("evicted entry recomputed", 1); err != nil {
		return err
	}
	fmt.Fprintf(out, "stored keys: %d of %d\n", double.Info().Size, double.Info().MaxSize)

	// ---------------- Flaky fetch ----------------
	fetchCfg := cfg.Wrapper("fetch")
	if !fetchCfg.Retrying() {
		fetchCfg.MaxAttempts = 3
		fetchCfg.BaseDelay = 50 * time.Millisecond
		fetchCfg.JitterFraction = 0.1
	}

	var attempts atomic.Int32
	fetch, err := callcache.Wrap("fetch", func(_ context.Context, failures int) (string, error) {
		if int(attempts.Add(1)) <= failures {
			return "", io.ErrUnexpectedEOF
		}
		return "payload", nil
	}, fetchCfg,
		callcache.WithLogger(logger),
		callcache.WithMetrics(collector.For("fetch")),
		callcache.WithRetryable(io.ErrUnexpectedEOF),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\n==================== 4) RETRY ====================")
	attempts.Store(0)
	v, err := fetch.Invoke(ctx, fetchCfg.MaxAttempts-1)
	fmt.Fprintf(out, "fetch after %d attempts = %q, err = %v\n", attempts.Load(), v, err)

	fmt.Fprintln(out, "\n==================== 5) EXHAUSTION ====================")
	attempts.Store(0)
	res := <-fetch.InvokeAsync(ctx, fetchCfg.MaxAttempts+10)
	var exhausted *types.RetryExhaustedError
	if errors.As(res.Err, &exhausted) {
		fmt.Fprintf(out, "gave up after %d attempts in %s: %v\n", exhausted.Attempts, exhausted.Elapsed.Round(time.Millisecond), exhausted.Last)
	} else {
		fmt.Fprintf(out, "unexpected result: %q, %v\n", res.Value, res.Err)
	}

	printMetrics(out, reg)

	fmt.Fprintln(out, "\n==================== SHUTDOWN ====================")
	return nil
}
