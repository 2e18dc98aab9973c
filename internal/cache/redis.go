package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

type RedisConfig struct {
	Address   string
	Username  string
	Password  string
	DB        int
	Namespace string
	TLS       RedisTLSConfig
}

type redisStore struct {
	client     valkey.Client
	namespace  string
	defaultTTL time.Duration
}

// NewRedisStore connects to a valkey/redis server shared by every portal instance.
func NewRedisStore(cfg RedisConfig, defaultTTL time.Duration) (Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: redis address required")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("cache: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("cache: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("cache: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "portal:"
	}
	return &redisStore{client: client, namespace: namespace, defaultTTL: defaultTTL}, nil
}

func (c *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(c.namespace+key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get bytes: %w", err)
	}
	return payload, true, nil
}

func (c *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	cmd := c.client.B().Set().Key(c.namespace + key).Value(valkey.BinaryString(value)).Px(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

func (c *redisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.scan(ctx, globEscape(c.namespace+prefix)+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Do(ctx, c.client.B().Del().Key(keys...).Build()).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("cache: redis del: %w", err)
	}
	return int(n), nil
}

func (c *redisStore) Clear(ctx context.Context) error {
	_, err := c.DeletePrefix(ctx, "")
	return err
}

func (c *redisStore) Len(ctx context.Context) (int, error) {
	keys, err := c.scan(ctx, globEscape(c.namespace)+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *redisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.scan(ctx, globEscape(c.namespace)+"*")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[len(c.namespace):])
	}
	return out, nil
}

func (c *redisStore) scan(ctx context.Context, match string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(match).Count(200).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("cache: redis scan: %w", err)
		}
		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (c *redisStore) Close() error {
	c.client.Close()
	return nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func globEscape(s string) string { return globReplacer.Replace(s) }
