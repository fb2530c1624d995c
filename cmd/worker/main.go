// Command worker archives committed chat exchanges published by the relay
// server on RabbitMQ into a SQL database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"github.com/suPer8Hu/chat-relay/internal/store/rabbitmq"
	"github.com/suPer8Hu/chat-relay/internal/store/sqlstore"
)

func main() {
	cfg, err := config.Load(os.Getenv("RELAY_CONFIG"))
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.RabbitURL == "" {
		log.Fatal().Msg("RABBIT_URL is required")
	}

	db, err := sqlstore.Open(cfg.ArchiveDriver, cfg.ArchiveDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open archive")
	}
	archive, err := sqlstore.NewArchive(db)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate archive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := func(ctx context.Context, ev chat.ExchangeEvent) error {
		return archiveExchange(ctx, archive, ev, log)
	}
	if err := rabbitmq.Consume(ctx, cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, handle, log); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}

func archiveExchange(ctx context.Context, archive *sqlstore.Archive, ev chat.ExchangeEvent, log zerolog.Logger) error {
	start := time.Now()
	created, err := archive.Record(ctx, &sqlstore.ExchangeRecord{
		ID:               ev.ID,
		ConversationID:   ev.ConversationID,
		UserMessage:      ev.UserMessage,
		AssistantMessage: ev.AssistantMessage,
		MessageCount:     ev.MessageCount,
		CommittedAt:      ev.CommittedAt,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Debug().Str("event_id", ev.ID).Msg("duplicate exchange ignored")
		return nil
	}
	if cost := time.Since(start); cost > 500*time.Millisecond {
		log.Warn().Str("event_id", ev.ID).Dur("cost", cost).Msg("slow archive insert")
	}
	return nil
}
