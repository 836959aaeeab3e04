package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/nkhandelwal/ingres-resolver/internal/config"
	"github.com/nkhandelwal/ingres-resolver/internal/kv"
	"github.com/nkhandelwal/ingres-resolver/internal/observability"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

const kvKeyPrefix = "scrape:"

type Consumer struct {
	cfg   config.InvalidationCfg
	kv    kv.Store
	store *store.Store
	log   zerolog.Logger
}

func NewConsumer(cfg config.InvalidationCfg, k kv.Store, s *store.Store, log zerolog.Logger) *Consumer {
	return &Consumer{cfg: cfg, kv: k, store: s, log: log}
}

// Start joins the consumer group and processes events until ctx is done.
// Consume returns on every rebalance, so it runs in a loop with a short
// backoff on error.
func (c *Consumer) Start(ctx context.Context) error {
	if c.kv == nil && c.store == nil {
		return errors.New("invalidation: no cache tier to invalidate")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	c.log.Info().
		Strs("brokers", c.cfg.Brokers).
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("invalidation consumer starting")

	handler := &groupHandler{process: c.ProcessOne}
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.log.Error().Err(err).Str("topic", c.cfg.Topic).Msg("consumer error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single message. Malformed or invalid events are
// counted and skipped, never retried: redelivering garbage cannot fix it.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncInvalidation("decode_error")
		c.log.Error().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Err(err).
			Msg("invalidation decode failed")
		return nil
	}
	if err := ev.Validate(); err != nil {
		observability.IncInvalidation("invalid")
		c.log.Warn().Str("op", ev.Op).Str("url", ev.URL).Err(err).Msg("invalidation event rejected")
		return nil
	}
	return c.apply(ctx, ev)
}

// apply drops the KV entry and marks the store row stale so the next read
// refetches. A failed tier is an error so the message is redelivered.
func (c *Consumer) apply(ctx context.Context, ev Event) error {
	if c.kv != nil {
		if err := c.kv.Del(ctx, kvKeyPrefix+ev.URL); err != nil {
			observability.IncInvalidation("kv_error")
			return fmt.Errorf("invalidate kv %q: %w", ev.URL, err)
		}
	}
	if c.store != nil {
		if err := c.store.ExpireScrape(ctx, ev.URL); err != nil {
			observability.IncInvalidation("store_error")
			return fmt.Errorf("invalidate store %q: %w", ev.URL, err)
		}
	}
	observability.IncInvalidation("ok")
	c.log.Debug().Str("op", ev.Op).Str("url", ev.URL).Msg("invalidated cached scrape")
	return nil
}
