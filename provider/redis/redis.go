package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/heyxyz/heycache"
	pr "github.com/heyxyz/heycache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// incrWindow increments the counter and arms its expiry on the first hit of a
// window. A counter that lost its expiry is re-armed so it can never pin a
// client forever.
var incrWindow = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if n == 1 or ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

type Redis struct {
	rdb         goredis.UniversalClient
	log         heycache.Logger
	closeClient bool
}

var (
	_ pr.Provider = (*Redis)(nil)
	_ pr.Counter  = (*Redis)(nil)
)

type Config struct {
	// URL is a redis:// or rediss:// connection string. Ignored when Client is set.
	URL string
	// Client is an existing client. Set CloseClient only if this provider owns it.
	Client      goredis.UniversalClient
	CloseClient bool

	Logger heycache.Logger // if nil, NopLogger is used

	// Connection-level retry/backoff. Zero values keep the go-redis defaults.
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
}

// New builds the client without touching the network; call Connect to verify
// the connection at startup.
func New(cfg Config) (*Redis, error) {
	log := heycache.Logger(heycache.NopLogger{})
	if cfg.Logger != nil {
		log = cfg.Logger
	}

	if cfg.Client != nil {
		return &Redis{rdb: cfg.Client, log: log, closeClient: cfg.CloseClient}, nil
	}
	if cfg.URL == "" {
		return nil, ErrNilClient
	}

	opt, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if cfg.MaxRetries != 0 {
		opt.MaxRetries = cfg.MaxRetries
	}
	if cfg.MinRetryBackoff > 0 {
		opt.MinRetryBackoff = cfg.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff > 0 {
		opt.MaxRetryBackoff = cfg.MaxRetryBackoff
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	opt.OnConnect = func(_ context.Context, _ *goredis.Conn) error {
		log.Info("[Redis] Redis ready", heycache.Fields{"addr": opt.Addr})
		return nil
	}

	rdb := goredis.NewClient(opt)
	rdb.AddHook(lifecycleHook{log: log})
	return &Redis{rdb: rdb, log: log, closeClient: true}, nil
}

// Connect pings the server once. Failures are returned so the composition root
// can decide whether to run without a cache.
func (p *Redis) Connect(ctx context.Context) error {
	p.log.Info("[Redis] Connecting to Redis", nil)
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		p.log.Error("[Redis] Connection error", heycache.Fields{"err": err})
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Client exposes the underlying client for callers that need raw commands.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // "no expiry" per provider contract
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

func (p *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := p.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis passes the -1/-2 replies through unscaled.
	switch d {
	case -1:
		return pr.NoExpiry, nil
	case -2:
		return pr.Missing, nil
	}
	return d, nil
}

func (p *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindow.Run(ctx, p.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("redis incr: unexpected reply length %d", len(res))
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	err := p.rdb.Close()
	if err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	if err == nil {
		p.log.Info("[Redis] Redis end", nil)
	}
	return nil
}

// lifecycleHook logs dial outcomes. A failed dial is followed by go-redis'
// own retry/backoff, so it is reported as a reconnect.
type lifecycleHook struct {
	log heycache.Logger
}

func (h lifecycleHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.log.Error("[Redis] Redis reconnecting", heycache.Fields{"addr": addr, "err": err})
			return nil, err
		}
		h.log.Info("[Redis] Redis connect", heycache.Fields{"addr": addr})
		return conn, nil
	}
}

func (h lifecycleHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && err != goredis.Nil && !isContextErr(err) {
			h.log.Debug("[Redis] Redis error", heycache.Fields{"cmd": cmd.Name(), "err": err})
		}
		return err
	}
}

func (h lifecycleHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
