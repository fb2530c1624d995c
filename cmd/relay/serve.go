package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/httpapi"
	"github.com/suPer8Hu/chat-relay/internal/store/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "listen address (default :3000)")
	f.String("provider", "", "model backend: ollama, openrouter or gemini")
	f.Bool("auto-title", false, "infer titles server side after the first exchange")
	_ = a.v.BindPFlag("http_addr", f.Lookup("addr"))
	_ = a.v.BindPFlag("ai_provider", f.Lookup("provider"))
	_ = a.v.BindPFlag("auto_title", f.Lookup("auto-title"))
	return cmd
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GeminiModel
		}
		p, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, m)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	return reg
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.log

	source, err := newRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return err
	}

	opts := []chat.ServiceOption{
		chat.WithLogger(log.With().Str("component", "chat").Logger()),
		chat.WithAutoTitle(cfg.AutoTitle),
	}
	if cfg.TitlePromptFile != "" {
		p, err := chat.LoadTitlePrompt(cfg.TitlePromptFile)
		if err != nil {
			return err
		}
		opts = append(opts, chat.WithTitlePrompt(p))
	}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return errors.Wrap(err, "exchange publisher")
		}
		defer pub.Close()
		opts = append(opts, chat.WithEventPublisher(pub))
	}

	// conversations live for this process only
	svc := chat.NewService(chat.NewStore(), source, opts...)
	router := httpapi.NewRouter(svc, log.With().Str("component", "http").Logger())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("provider", cfg.AIProvider).
			Bool("auto_title", cfg.AutoTitle).
			Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		err := srv.Shutdown(sctx)
		svc.Wait()
		return errors.Wrap(err, "shutdown")
	})
	return g.Wait()
}
