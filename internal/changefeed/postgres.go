package changefeed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultChannel is the NOTIFY channel written by the inventory triggers.
const DefaultChannel = "inventory_changes"

// PostgresFeed listens to LISTEN/NOTIFY on a dedicated pooled connection.
type PostgresFeed struct {
	pool    *pgxpool.Pool
	channel string
	retry   time.Duration
	logger  *slog.Logger
}

// NewPostgresFeed constructs a feed on channel (DefaultChannel when empty).
func NewPostgresFeed(pool *pgxpool.Pool, channel string, logger *slog.Logger) *PostgresFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresFeed{pool: pool, channel: channel, retry: 2 * time.Second, logger: logger}
}

// BindTrigger points the inventory_items NOTIFY trigger at the feed's
// channel, so the listener and the trigger always agree.
func (f *PostgresFeed) BindTrigger(ctx context.Context) error {
	if f == nil || f.pool == nil {
		return errors.New("changefeed: postgres pool not configured")
	}
	return pgx.BeginFunc(ctx, f.pool, func(tx pgx.Tx) error {
		for _, stmt := range triggerDDL(f.channel) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func triggerDDL(channel string) []string {
	literal := "'" + strings.ReplaceAll(channel, "'", "''") + "'"
	return []string{
		`DROP TRIGGER IF EXISTS inventory_items_notify ON inventory_items`,
		`CREATE TRIGGER inventory_items_notify AFTER INSERT OR UPDATE OR DELETE ON inventory_items ` +
			`FOR EACH ROW EXECUTE FUNCTION notify_inventory_change(` + literal + `)`,
	}
}

// Listen blocks until ctx is cancelled, reconnecting after connection loss.
// A refresh event is emitted after every successful LISTEN.
func (f *PostgresFeed) Listen(ctx context.Context, sink Sink) error {
	if f == nil || f.pool == nil {
		return errors.New("changefeed: postgres pool not configured")
	}
	for {
		err := f.listenOnce(ctx, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("change feed disconnected", slog.String("channel", f.channel), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retry):
		}
	}
}

func (f *PostgresFeed) listenOnce(ctx context.Context, sink Sink) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return err
	}
	sink(RefreshEvent())
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		evt, err := Decode([]byte(n.Payload))
		if err != nil {
			f.logger.Warn("change feed payload", slog.Any("error", err))
			continue
		}
		sink(evt)
	}
}
