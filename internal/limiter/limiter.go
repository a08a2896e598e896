package limiter

import (
	"context"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Adaptive rate-limits outbound scraping per publisher host. Concurrency is
// bounded in-process; cooldowns after a host pushes back (429, 503) live in
// Redis so every replica backs off together.
type Adaptive struct {
	rdb         *redis.Client
	maxInflight int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	mu          sync.Mutex
	sem         map[string]chan struct{}
}

type Options struct {
	RedisURL    string
	MaxInflight int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(opts Options) (*Adaptive, error) {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 2
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Adaptive{
		rdb:         c,
		maxInflight: opts.MaxInflight,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		sem:         map[string]chan struct{}{},
	}, nil
}

func (a *Adaptive) key(host string) string {
	return "fetch:cooldown:" + strings.ToLower(host)
}

// IsOpen reports whether the host is in cooldown.
func (a *Adaptive) IsOpen(ctx context.Context, host string) bool {
	ts, err := a.rdb.Get(ctx, a.key(host)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

// Open starts or extends the host cooldown, doubling per consecutive call
// up to the cap.
func (a *Adaptive) Open(ctx context.Context, host string) {
	k := a.key(host)
	cntKey := k + ":attempts"
	attempts, _ := a.rdb.Incr(ctx, cntKey).Result()
	if attempts < 1 {
		attempts = 1
	}
	d := a.baseBackoff * (1 << (attempts - 1))
	if d > a.maxBackoff {
		d = a.maxBackoff
	}
	until := time.Now().Add(d).Unix()
	_ = a.rdb.Set(ctx, k, until, d).Err()
	_ = a.rdb.Expire(ctx, cntKey, a.maxBackoff*2).Err()
}

// Close clears the cooldown after a successful fetch.
func (a *Adaptive) Close(ctx context.Context, host string) {
	k := a.key(host)
	_ = a.rdb.Del(ctx, k, k+":attempts").Err()
}

// Allow reserves an in-process fetch slot for the host. The returned release
// must be called when the fetch finishes.
func (a *Adaptive) Allow(host string) (func(), bool) {
	key := strings.ToLower(host)
	a.mu.Lock()
	ch, ok := a.sem[key]
	if !ok {
		ch = make(chan struct{}, a.maxInflight)
		a.sem[key] = ch
	}
	a.mu.Unlock()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return func() {}, false
	}
}

func (a *Adaptive) CloseClient() error { return a.rdb.Close() }
