// Package leaselock provides expiring locks stored in PostgreSQL. Workers
// use them to make sure one sampling grid is computed by one process at a
// time; a crashed worker's lease simply runs out.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

const renewAttempts = 3

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db dbConn
}

func New(db dbConn) *Client {
	return &Client{db: db}
}

// Options tune a single lease. The zero value holds for five minutes,
// renews every half TTL and fails fast when the key is taken.
type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	// HolderPrefix is prepended to the random holder token, e.g. a host name.
	HolderPrefix string
}

func (o Options) withDefaults() Options {
	if o.TTL.Milliseconds() <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = 250 * time.Millisecond
	}
	o.WaitJitter = max(o.WaitJitter, 0)
	return o
}

// Lease is a held lock. Context is cancelled when the lease is released or
// could not be renewed; context.Cause then reports ErrLost.
type Lease struct {
	Key    string
	Holder string

	Context context.Context

	client *Client
	ttlMs  int64
	cancel context.CancelCauseFunc
	once   sync.Once
	done   chan struct{}
}

// Key joins parts into a lock key, e.g. Key("sampling", "hp", "5") ->
// "sampling:hp:5".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// WithLease runs fn while holding key. fn receives the lease context and
// should stop when it is cancelled.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer lease.Release(context.Background())

	err = fn(lease.Context)
	if err != nil && lease.Lost() {
		return errors.Join(err, ErrLost)
	}
	return err
}

// Acquire takes key for a fresh holder. Without opts.Wait a taken key fails
// with ErrBusy; with it, Acquire polls until the key is free or ctx is done.
func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.withDefaults()

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	l := &Lease{
		Key:    key,
		Holder: opts.HolderPrefix + tok,
		client: c,
		ttlMs:  opts.TTL.Milliseconds(),
		done:   make(chan struct{}),
	}

	for {
		ok, err := l.claim(ctx, claimSQL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := pause(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	l.Context, l.cancel = context.WithCancelCause(ctx)
	go l.keepAlive(opts.RenewEvery)
	return l, nil
}

// claim runs a statement returning the key when the holder owns it
// afterwards.
func (l *Lease) claim(ctx context.Context, sql string) (bool, error) {
	var key string
	err := l.client.db.QueryRow(ctx, sql, l.Key, l.Holder, l.ttlMs).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return key != "", nil
}

// Lost reports whether the lease ran out before it was released.
func (l *Lease) Lost() bool {
	return errors.Is(context.Cause(l.Context), ErrLost)
}

func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
	})
	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Holder)
	return err
}

func (l *Lease) keepAlive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

// renew extends the lease, retrying transient database errors. A lease
// taken over by another holder is lost immediately.
func (l *Lease) renew() error {
	var err error
	for attempt := range renewAttempts {
		if attempt > 0 {
			if perr := pause(l.Context, 200*time.Millisecond, 0); perr != nil {
				return perr
			}
		}
		ctx, cancel := context.WithTimeout(l.Context, 15*time.Second)
		var ok bool
		ok, err = l.claim(ctx, renewSQL)
		cancel()
		if err == nil {
			if !ok {
				return ErrLost
			}
			return nil
		}
	}
	return err
}

func pause(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const claimSQL = `
INSERT INTO sampling_leases (lease_key, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE sampling_leases.expires_at < now()
   OR sampling_leases.holder = EXCLUDED.holder
RETURNING lease_key;
`

const renewSQL = `
UPDATE sampling_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND holder = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM sampling_leases
WHERE lease_key = $1 AND holder = $2;
`
