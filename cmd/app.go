package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"superswap/config"
	"superswap/pkg/client"
	"superswap/pkg/discovery"
	"superswap/pkg/network"
	"superswap/pkg/parser"
	"superswap/pkg/swap"
	"superswap/pkg/types"
)

// app holds the collaborators shared by a command run. It is built once per
// invocation and torn down by close.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *swap.Metrics
	server  *http.Server

	session    *swap.Session
	jupiter    *client.JupiterClient
	discoverer *discovery.Discoverer
	network    *network.Solana
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger, err := newLogger(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := swap.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	solana, err := network.NewSolana(cfg.Solana, logger.Named("network"))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		session: swap.NewSession(cfg.Quote.SlippageBps, logger.Named("session")),
		jupiter: client.NewJupiterClient(cfg.Jupiter.BaseURL, cfg.Jupiter.APIKey, cfg.Jupiter.Timeout),
		discoverer: discovery.New(client.NewDASClient(cfg.DASURL, 0), discovery.Config{
			PageSize:          cfg.Discovery.PageSize,
			RPS:               cfg.Discovery.RPS,
			Burst:             cfg.Discovery.Burst,
			IncludeNative:     cfg.Discovery.IncludeNative,
			NativeMint:        config.WrappedSOLMint,
			NativeLogo:        cfg.Discovery.NativeLogo,
			DefaultInputMint:  cfg.Defaults.InputMint,
			DefaultOutputMint: cfg.Defaults.OutputMint,
			Logger:            logger.Named("discovery"),
			Metrics:           metrics,
		}),
		network: solana,
	}

	if cfg.Metrics != "" {
		a.serveMetrics(reg)
	}
	return a, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	a.server = &http.Server{
		Addr:              a.cfg.Metrics,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	a.logger.Info("metrics endpoint enabled", zap.String("addr", a.cfg.Metrics))
}

// newScheduler attaches a quote scheduler to the app's session
func (a *app) newScheduler() *swap.Scheduler {
	return swap.NewScheduler(a.session, a.jupiter, swap.SchedulerConfig{
		Debounce: a.cfg.Quote.Debounce,
		Logger:   a.logger.Named("scheduler"),
		Metrics:  a.metrics,
	})
}

func (a *app) newExecutor() *swap.Executor {
	return swap.NewExecutor(a.session, a.jupiter, a.network, swap.ExecutorConfig{
		MaxRetries: a.cfg.Solana.MaxRetries,
		Logger:     a.logger.Named("executor"),
		Metrics:    a.metrics,
	})
}

// resolveToken finds a token by symbol or mint among the discovered holdings
func (a *app) resolveToken(ref string) (types.TokenDescriptor, error) {
	token, ok := a.session.Universe().Resolve(ref)
	if !ok {
		return types.TokenDescriptor{}, fmt.Errorf("token %s not found in wallet (try: superswap tokens)", ref)
	}
	return token, nil
}

// resolveOutput also accepts mints the wallet does not hold yet. known reports
// whether the descriptor, and so its decimals, came from discovery.
func (a *app) resolveOutput(ref string) (token types.TokenDescriptor, known bool, err error) {
	if token, ok := a.session.Universe().Resolve(ref); ok {
		return token, true, nil
	}
	if parser.IsMintAddress(ref) {
		return types.TokenDescriptor{Address: ref, Symbol: shortAddress(ref)}, false, nil
	}
	return types.TokenDescriptor{}, false, fmt.Errorf("token %s not found in wallet; pass its mint address instead", ref)
}

// waitForQuote applies a parameter change and blocks until the session settles
// on a quote or records why it has none
func (a *app) waitForQuote(ctx context.Context, scheduler *swap.Scheduler, apply func() error) (swap.Snapshot, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := a.session.Subscribe(func(swap.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := apply(); err != nil {
		return swap.Snapshot{}, err
	}
	// a one-shot command has no further edits to wait for
	scheduler.Refresh()

	for {
		select {
		case <-ctx.Done():
			return a.session.Snapshot(), fmt.Errorf("no quote received: %w", ctx.Err())
		case <-changed:
			snap := a.session.Snapshot()
			switch {
			case snap.Status == swap.StatusQuoted && snap.Quote != nil:
				return snap, nil
			case snap.Status == swap.StatusIdle && snap.Failure != nil:
				return snap, snap.Failure
			}
		}
	}
}

func (a *app) close() {
	a.session.Close()
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	_ = a.logger.Sync()
}
