// Package postgres implements store.Relational on pgxpool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/internal/store"
)

type DB struct {
	log  heycache.Logger
	pool *pgxpool.Pool
}

var _ store.Relational = (*DB)(nil)

func New(ctx context.Context, log heycache.Logger, dsn string) (*DB, error) {
	log.Info("initializing pgxpool", nil)
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &DB{log: log, pool: pool}, nil
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		d.log.Error("database ping failed", heycache.Fields{"err": err})
		return err
	}
	return nil
}

func (d *DB) Close() {
	d.log.Info("closing pgxpool", nil)
	d.pool.Close()
}

const pollQuery = `
SELECT p."endsAt", o.id, o.option, o.index, COUNT(r.id) AS responses
FROM "Poll" p
JOIN "PollOption" o ON o."pollId" = p.id
LEFT JOIN "PollResponse" r ON r."optionId" = o.id
WHERE p.id = $1
GROUP BY p."endsAt", o.id, o.option, o.index
ORDER BY o.index ASC`

func (d *DB) Poll(ctx context.Context, id string) (store.Poll, error) {
	rows, err := d.pool.Query(ctx, pollQuery, id)
	if err != nil {
		return store.Poll{}, fmt.Errorf("query poll: %w", err)
	}
	defer rows.Close()

	p := store.Poll{ID: id}
	for rows.Next() {
		var o store.PollOption
		var endsAt time.Time
		if err := rows.Scan(&endsAt, &o.ID, &o.Option, &o.Index, &o.Responses); err != nil {
			return store.Poll{}, fmt.Errorf("scan poll: %w", err)
		}
		p.EndsAt = endsAt
		p.Options = append(p.Options, o)
	}
	if err := rows.Err(); err != nil {
		return store.Poll{}, err
	}
	if len(p.Options) == 0 {
		return store.Poll{}, store.ErrNotFound
	}
	return p, nil
}

func (d *DB) RespondPoll(ctx context.Context, pollID, optionID, profileID string) error {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO "PollResponse" ("optionId", "profileId")
		SELECT o.id, $3 FROM "PollOption" o
		WHERE o.id = $2 AND o."pollId" = $1
		ON CONFLICT ("optionId", "profileId") DO NOTHING`,
		pollID, optionID, profileID)
	if err != nil {
		return fmt.Errorf("respond poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := d.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM "PollOption" WHERE id = $2 AND "pollId" = $1)`,
			pollID, optionID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("respond poll: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
	}
	return nil
}

func (d *DB) FeatureProfiles(ctx context.Context, featureID string) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT "profileId" FROM "ProfileFeature" WHERE enabled = TRUE AND "featureId" = $1`,
		featureID)
	if err != nil {
		return nil, fmt.Errorf("query feature profiles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect feature profiles: %w", err)
	}
	return ids, nil
}

func (d *DB) SetProfileFeature(ctx context.Context, profileID, featureID string, enabled bool) error {
	var err error
	if enabled {
		_, err = d.pool.Exec(ctx, `
			INSERT INTO "ProfileFeature" ("featureId", "profileId")
			VALUES ($1, $2)
			ON CONFLICT ("profileId", "featureId") DO NOTHING`,
			featureID, profileID)
	} else {
		_, err = d.pool.Exec(ctx,
			`DELETE FROM "ProfileFeature" WHERE "profileId" = $1 AND "featureId" = $2`,
			profileID, featureID)
	}
	if err != nil {
		return fmt.Errorf("set profile feature: %w", err)
	}
	return nil
}

func (d *DB) AllowedTokens(ctx context.Context) ([]store.AllowedToken, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, "contractAddress", decimals, name, symbol, "createdAt"
		FROM "AllowedToken" ORDER BY "createdAt" ASC`)
	if err != nil {
		return nil, fmt.Errorf("query allowed tokens: %w", err)
	}
	ts, err := pgx.CollectRows(rows, pgx.RowToStructByName[store.AllowedToken])
	if err != nil {
		return nil, fmt.Errorf("collect allowed tokens: %w", err)
	}
	return ts, nil
}

func (d *DB) CreateAllowedToken(ctx context.Context, t store.AllowedToken) (store.AllowedToken, error) {
	rows, err := d.pool.Query(ctx, `
		INSERT INTO "AllowedToken" ("contractAddress", decimals, name, symbol)
		VALUES ($1, $2, $3, $4)
		RETURNING id, "contractAddress", decimals, name, symbol, "createdAt"`,
		t.ContractAddress, t.Decimals, t.Name, t.Symbol)
	if err != nil {
		return store.AllowedToken{}, fmt.Errorf("create allowed token: %w", err)
	}
	out, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[store.AllowedToken])
	if err != nil {
		return store.AllowedToken{}, fmt.Errorf("create allowed token: %w", err)
	}
	return out, nil
}

func (d *DB) DeleteAllowedToken(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM "AllowedToken" WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete allowed token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

