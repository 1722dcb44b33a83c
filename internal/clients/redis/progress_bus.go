package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

// ProgressBus fans niche progress events out across processes.
type ProgressBus interface {
	Publish(ctx context.Context, ev niches.ProgressEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev niches.ProgressEvent)) error
	Client() goredis.UniversalClient
	Close() error
}

type progressBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewProgressBus(log *logger.Logger) (ProgressBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newProgressBus(log, rdb, envutil.String("REDIS_PROGRESS_CHANNEL", "niche-progress")), nil
}

func newProgressBus(log *logger.Logger, rdb *goredis.Client, channel string) *progressBus {
	return &progressBus{
		log:     log.With("service", "RedisProgressBus"),
		rdb:     rdb,
		channel: channel,
	}
}

func (b *progressBus) Client() goredis.UniversalClient {
	if b == nil {
		return nil
	}
	return b.rdb
}

func (b *progressBus) Publish(ctx context.Context, ev niches.ProgressEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis progress bus not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *progressBus) StartForwarder(ctx context.Context, onEvent func(ev niches.ProgressEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis progress bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, err := decodeEvent(m.Payload)
				if err != nil {
					b.log.Warn("bad redis progress payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *progressBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func decodeEvent(payload string) (niches.ProgressEvent, error) {
	var ev niches.ProgressEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, err
	}
	if ev.NicheID == "" {
		return ev, fmt.Errorf("progress event missing nicheId")
	}
	return ev, nil
}
