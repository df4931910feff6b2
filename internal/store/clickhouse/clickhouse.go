// Package clickhouse implements store.Analytics on the native ClickHouse
// protocol.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/internal/store"
)

const insertImpressions = `INSERT INTO impressions (publication_id, viewer_id, ip, created)`

type DB struct {
	log  heycache.Logger
	conn driver.Conn
}

var _ store.Analytics = (*DB)(nil)

// New opens a connection from a clickhouse:// DSN.
func New(ctx context.Context, log heycache.Logger, dsn string) (*DB, error) {
	opts, err := ch.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		log.Warn("clickhouse ping failed", heycache.Fields{"err": err})
	}
	return &DB{log: log, conn: conn}, nil
}

func (d *DB) InsertImpressions(ctx context.Context, rows []store.Impression) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	queryID := uuid.NewString()
	ctx = ch.Context(ctx, ch.WithQueryID(queryID))

	batch, err := d.conn.PrepareBatch(ctx, insertImpressions)
	if err != nil {
		return "", fmt.Errorf("prepare impressions batch: %w", err)
	}
	for _, r := range rows {
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if err := batch.Append(r.PublicationID, r.ViewerID, r.IP, created); err != nil {
			_ = batch.Abort()
			return "", fmt.Errorf("append impression: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return "", fmt.Errorf("send impressions batch: %w", err)
	}
	d.log.Info("ingested impressions", heycache.Fields{"rows": len(rows), "query_id": queryID})
	return queryID, nil
}

func (d *DB) Close() error { return d.conn.Close() }
