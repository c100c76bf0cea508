package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"routerd/internal/cache"
	"routerd/internal/config"
	"routerd/internal/httpapi"
	"routerd/internal/promptstore"
	"routerd/internal/registry"
	"routerd/internal/router"
	"routerd/pkg/types"
)

var cfgPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "routerd",
		Short:        "Route generation requests across AI backends with failover",
		SilenceUsage: true,
	}
	defaultCfg := "config.yaml"
	if v := os.Getenv("ROUTERD_CONFIG"); v != "" {
		defaultCfg = v
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "Path to config file (.yaml/.json/.toml, defaults ROUTERD_CONFIG)")
	root.AddCommand(newServeCmd(), newAskCmd(), newStatsCmd())
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// app bundles the constructed collaborators so every command builds and
// tears down the same way.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	store   cache.Store
	router  *router.Router
	prompts *promptstore.Store
}

func buildApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	reg, err := registry.FromConfig(cfg.Backends)
	if err != nil {
		return nil, fmt.Errorf("register backends: %w", err)
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		store = cache.NewRedis(cfg.RedisAddr, log)
	} else {
		store = cache.NewMemory()
	}

	var prompts *promptstore.Store
	var sink router.RecordSink
	if cfg.PromptDBPath != "" {
		prompts, err = promptstore.Open(cfg.PromptDBPath, log)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open prompt store: %w", err)
		}
		sink = prompts
	}

	rt, err := router.New(router.RouterConfig{
		Registry:    reg,
		Responses:   cache.NewResponseCache(store),
		HealthCache: cache.NewHealthCache(store),
		ResponseTTL: cfg.ResponseCacheTTL(),
		HealthTTL:   cfg.HealthCacheTTL(),
		Sink:        sink,
		Logger:      log,
	})
	if err != nil {
		store.Close()
		if prompts != nil {
			prompts.Close()
		}
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store, router: rt, prompts: prompts}, nil
}

func (a *app) Close() {
	_ = a.router.Close()
	if a.prompts != nil {
		_ = a.prompts.Close()
	}
	_ = a.store.Close()
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operational HTTP server (health, statistics, metrics, prompt log)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.Addr
			}

			httpapi.SetLogger(a.log)
			httpapi.SetCORSOptions(a.cfg.CORSEnabled, a.cfg.CORSAllowedOrigins)
			mux := httpapi.NewMux(a.router, a.prompts)
			srv := &http.Server{Addr: addr, Handler: mux}

			go func() {
				a.log.Info().Str("addr", addr).Msg("routerd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.Fatal().Err(err).Msg("server error")
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides config addr")
	return cmd
}

func newAskCmd() *cobra.Command {
	var (
		task        string
		model       string
		system      string
		maxTokens   int
		temperature float64
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Route a single prompt and print the response envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := a.router.Route(ctx, types.RouteRequest{
				Prompt:       args[0],
				Task:         types.TaskType(task),
				Model:        model,
				SystemPrompt: system,
				MaxTokens:    maxTokens,
				Temperature:  temperature,
			})
			if err != nil {
				return err
			}
			if resp == nil {
				return fmt.Errorf("no backend available for task %q", task)
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&task, "task", string(types.TaskGeneral), "Task type")
	cmd.Flags().StringVar(&model, "model", "", "Explicit model override")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum output tokens (0 = backend default)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature in [0, 2]")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall request timeout")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print router statistics for the configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(a.router.Stats())
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
