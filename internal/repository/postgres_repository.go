package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartstore/internal/db"
	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
)

type postgresRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) port.SnapshotRepository {
	return &postgresRepository{
		q:    db.New(pool),
		pool: pool,
	}
}

func NewPostgresWithTx(tx pgx.Tx) port.SnapshotRepository {
	return &postgresRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (r *postgresRepository) Load(ctx context.Context, key string) (domain.Snapshot, error) {
	if key == "" {
		return domain.Snapshot{}, fmt.Errorf("key is empty")
	}

	row, err := r.q.GetSnapshot(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, port.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("q.GetSnapshot: %w", err)
	}

	cart, err := decodeCart(row.Payload)
	if err != nil {
		return domain.Snapshot{Version: row.Version}, fmt.Errorf("decodeCart: %w", err)
	}

	return domain.Snapshot{
		Cart:    cart,
		Version: row.Version,
	}, nil
}

func (r *postgresRepository) Save(ctx context.Context, key string, cart domain.Cart, expectedVersion int64) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key is empty")
	}

	payload, err := encodeCart(cart)
	if err != nil {
		return 0, fmt.Errorf("encodeCart: %w", err)
	}

	return withTx(ctx, r.pool, r.q, func(q *db.Queries) (int64, error) {
		current, err := q.LockSnapshotVersion(ctx, key)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("q.LockSnapshotVersion: %w", err)
		}

		if current != expectedVersion {
			return 0, fmt.Errorf("stored version %d, expected %d: %w", current, expectedVersion, port.ErrVersionConflict)
		}

		next := expectedVersion + 1

		var affected int64
		if current == 0 {
			affected, err = q.InsertSnapshot(ctx, db.InsertSnapshotParams{
				SnapshotKey: key,
				Payload:     payload,
				Version:     next,
			})
			if err != nil {
				return 0, fmt.Errorf("q.InsertSnapshot: %w", err)
			}
		} else {
			affected, err = q.UpdateSnapshot(ctx, db.UpdateSnapshotParams{
				SnapshotKey:     key,
				Payload:         payload,
				Version:         next,
				ExpectedVersion: expectedVersion,
			})
			if err != nil {
				return 0, fmt.Errorf("q.UpdateSnapshot: %w", err)
			}
		}

		// a concurrent insert won the race for a fresh key
		if affected == 0 {
			return 0, port.ErrVersionConflict
		}

		return next, nil
	})
}
