package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider implements Provider with one short-lived connection per call.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// NewValkeyProvider pings the server so bad credentials fail at startup.
func NewValkeyProvider(ctx context.Context, cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	normaliseValkey(&cfg)
	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	err := p.run(ctx, func(c *respConn) error {
		r, err := c.do([]byte("PING"))
		if err != nil {
			return err
		}
		if !r.is(kindSimple, "PONG") {
			return fmt.Errorf("unexpected PING reply %q", r.data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("valkey ping %s: %w", cfg.Addr, err)
	}
	return p, nil
}

// Get returns ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := p.run(ctx, func(c *respConn) error {
		r, err := c.do([]byte("GET"), []byte(key))
		if err != nil {
			return err
		}
		switch r.kind {
		case kindNil:
			return ErrCacheMiss
		case kindBulk:
			out = r.data
			return nil
		default:
			return fmt.Errorf("unexpected GET reply kind %q", r.kind)
		}
	})
	return out, err
}

// Set stores value with an optional millisecond TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.run(ctx, func(c *respConn) error {
		r, err := c.do(setArgs(key, value, ttl, false)...)
		if err != nil {
			return err
		}
		if !r.is(kindSimple, "OK") {
			return fmt.Errorf("unexpected SET reply %q", r.data)
		}
		return nil
	})
}

// SetNX reports whether this call created the key.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var created bool
	err := p.run(ctx, func(c *respConn) error {
		r, err := c.do(setArgs(key, value, ttl, true)...)
		if err != nil {
			return err
		}
		switch r.kind {
		case kindSimple:
			created = true
		case kindNil:
			created = false
		default:
			return fmt.Errorf("unexpected SET NX reply kind %q", r.kind)
		}
		return nil
	})
	return created, err
}

// Del removes key. Deleting a missing key is not an error.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.run(ctx, func(c *respConn) error {
		_, err := c.do([]byte("DEL"), []byte(key))
		return err
	})
}

// Close is a no-op; connections are not pooled.
func (p *ValkeyProvider) Close() error { return nil }

func setArgs(key string, value []byte, ttl time.Duration, nx bool) [][]byte {
	args := [][]byte{[]byte("SET"), []byte(key), value}
	if ttl > 0 {
		args = append(args, []byte("PX"), strconv.AppendInt(nil, ttl.Milliseconds(), 10))
	}
	if nx {
		args = append(args, []byte("NX"))
	}
	return args
}

// run dials, authenticates and executes fn, retrying transient network
// errors up to MaxRetries attempts.
func (p *ValkeyProvider) run(ctx context.Context, fn func(*respConn) error) error {
	var err error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = p.attempt(ctx, fn)
		if err == nil || !transient(err) {
			return err
		}
	}
	return err
}

func (p *ValkeyProvider) attempt(ctx context.Context, fn func(*respConn) error) error {
	conn, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.close()
	if err := p.handshake(conn); err != nil {
		return err
	}
	return fn(conn)
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: hostOf(p.cfg.Addr)}}
		conn, err = td.DialContext(ctx, "tcp", p.cfg.Addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return newRESPConn(conn, p.cfg.ReadTimeout, p.cfg.WriteTimeout), nil
}

func (p *ValkeyProvider) handshake(c *respConn) error {
	if p.cfg.Password != "" {
		args := [][]byte{[]byte("AUTH")}
		if p.cfg.Username != "" {
			args = append(args, []byte(p.cfg.Username))
		}
		args = append(args, []byte(p.cfg.Password))
		r, err := c.do(args...)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		if !r.is(kindSimple, "OK") {
			return fmt.Errorf("auth: unexpected reply %q", r.data)
		}
	}
	if p.cfg.DB > 0 {
		r, err := c.do([]byte("SELECT"), []byte(strconv.Itoa(p.cfg.DB)))
		if err != nil {
			return fmt.Errorf("select db %d: %w", p.cfg.DB, err)
		}
		if !r.is(kindSimple, "OK") {
			return fmt.Errorf("select db %d: unexpected reply %q", p.cfg.DB, r.data)
		}
	}
	return nil
}

func normaliseValkey(cfg *ValkeyConfig) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 25 * time.Millisecond
}

func transient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
