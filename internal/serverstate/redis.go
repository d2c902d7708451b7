package serverstate

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store backed by a Redis instance, so tooling on other
// hosts can see whether a plugin is attached.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
}

// KeyPrefix namespaces bridge state keys. The full key ends with the port.
const KeyPrefix = "fmcp-bridge:state:"

// Key returns the redis key for the bridge on port.
func Key(port int) string { return KeyPrefix + strconv.Itoa(port) }

// NewRedisStore connects to the given Redis URL and returns a Store writing
// key. The key is initialized to a default state if it does not exist.
func NewRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	opts, err := redisOptions(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	rs := &RedisStore{client: c, key: key, timeout: 2 * time.Second}
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	b, _ := json.Marshal(State{Status: StatusNotReady})
	_ = c.SetNX(ctx, rs.key, b, 0).Err()
	return rs, nil
}

// Close releases the client.
func (r *RedisStore) Close() error { return r.client.Close() }

// redisOptions turns addr into client options. A bare host:port is used as
// is. URLs take the redis, rediss, redis-sentinel and rediss-sentinel
// schemes, with several comma separated hosts for clusters.
func redisOptions(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	scheme, sentinel := strings.CutSuffix(u.Scheme, "-sentinel")
	if scheme != "redis" && scheme != "rediss" {
		return nil, fmt.Errorf("redis: unsupported scheme %q", u.Scheme)
	}

	opts := &redis.UniversalOptions{Addrs: strings.Split(u.Host, ",")}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	if scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	q := u.Query()
	path := strings.Trim(u.Path, "/")
	db := q.Get("db")
	if sentinel {
		opts.MasterName = path
		opts.SentinelUsername = q.Get("sentinel_username")
		opts.SentinelPassword = q.Get("sentinel_password")
	} else if path != "" {
		db = path
	}
	if db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("redis: invalid db %q", db)
		}
		opts.DB = n
	}
	return opts, nil
}

// Load reads the state. A missing key reads as not ready and an unreachable
// server as unknown.
func (r *RedisStore) Load() State {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{Status: StatusNotReady}
		}
		return State{Status: StatusUnknown}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{Status: StatusUnknown}
	}
	return st
}

func (r *RedisStore) Store(s State) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.client.Set(ctx, r.key, b, 0).Err()
}
