package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares tag generations between processes that share a result cache
// provider, so a mutation seen by one client invalidates the others' results.
type Redis struct {
	rdb         redis.UniversalClient
	ns          string
	ttl         time.Duration // 0 => generation keys never expire
	closeClient bool
}

var _ GenStore = (*Redis)(nil)

type RedisConfig struct {
	Client    redis.UniversalClient
	Namespace string
	// TTL refreshes on every bump. An expired tag reads as 0; keep it well
	// above the result TTL.
	TTL time.Duration
	// CloseClient closes Client on Close; set only when the store owns it.
	CloseClient bool
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, errors.New("genstore: nil redis client")
	}
	return &Redis{rdb: cfg.Client, ns: cfg.Namespace, ttl: cfg.TTL, closeClient: cfg.CloseClient}, nil
}

func (s *Redis) key(tag string) string { return "gen:" + s.ns + ":" + tag }

func (s *Redis) Snapshot(ctx context.Context, tag string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(tag)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	g, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore: parse %s: %w", tag, err)
	}
	return g, nil
}

// Bump pipelines INCR and EXPIRE when a TTL is configured.
func (s *Redis) Bump(ctx context.Context, tag string) (uint64, error) {
	k := s.key(tag)
	if s.ttl <= 0 {
		return s.rdb.Incr(ctx, k).Uint64()
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

func (s *Redis) Cleanup(time.Duration) {}

func (s *Redis) Close(context.Context) error {
	if !s.closeClient {
		return nil
	}
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
