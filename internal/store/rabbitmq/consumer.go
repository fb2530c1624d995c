package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

// ExchangeHandler processes one delivered exchange. A non-nil error rejects
// the message to the DLQ.
type ExchangeHandler func(ctx context.Context, ev chat.ExchangeEvent) error

// Decode parses a delivery body. Events without an id or conversation are
// rejected.
func Decode(body []byte) (chat.ExchangeEvent, error) {
	var ev chat.ExchangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, errors.Wrap(err, "decode exchange event")
	}
	if ev.ID == "" || ev.ConversationID == "" {
		return ev, errors.New("exchange event missing id or conversation_id")
	}
	return ev, nil
}

// Consume runs a pool of concurrency workers on queue until ctx is done.
func Consume(ctx context.Context, url, queue string, concurrency int, handle ExchangeHandler, log zerolog.Logger) error {
	if concurrency < 1 {
		concurrency = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return errors.Wrap(err, "rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "rabbit channel")
	}
	defer ch.Close()

	if err := DeclareTopology(ch, queue); err != nil {
		return err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return errors.Wrap(err, "qos")
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}

	log.Info().Str("queue", queue).Int("concurrency", concurrency).Msg("worker started")

	jobs := make(chan amqp.Delivery, concurrency*2)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With().Int("worker", workerID).Logger()
			for d := range jobs {
				ev, err := Decode(d.Body)
				if err != nil {
					wlog.Warn().Err(err).Msg("bad message")
					_ = d.Nack(false, false)
					continue
				}
				start := time.Now()
				if err := handle(ctx, ev); err != nil {
					wlog.Error().Err(err).Str("event_id", ev.ID).Dur("cost", time.Since(start)).Msg("exchange failed")
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					wlog.Warn().Err(err).Str("event_id", ev.ID).Msg("ack failed")
				}
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}
