package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
	"github.com/redis/go-redis/v9"
)

type redisRepository struct {
	client *redis.Client
}

type redisRecord struct {
	Version int64           `json:"version"`
	Cart    json.RawMessage `json:"cart"`
}

func NewRedis(client *redis.Client) port.SnapshotRepository {
	return &redisRepository{client: client}
}

func (r *redisRepository) Load(ctx context.Context, key string) (domain.Snapshot, error) {
	if key == "" {
		return domain.Snapshot{}, fmt.Errorf("key is empty")
	}

	data, err := r.client.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, port.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("client.Get: %w", err)
	}

	var record redisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", port.ErrSnapshotCorrupt, err)
	}

	cart, err := decodeCart(record.Cart)
	if err != nil {
		return domain.Snapshot{Version: record.Version}, fmt.Errorf("decodeCart: %w", err)
	}

	return domain.Snapshot{
		Cart:    cart,
		Version: record.Version,
	}, nil
}

func (r *redisRepository) Save(ctx context.Context, key string, cart domain.Cart, expectedVersion int64) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key is empty")
	}

	payload, err := encodeCart(cart)
	if err != nil {
		return 0, fmt.Errorf("encodeCart: %w", err)
	}

	k := snapshotKey(key)
	next := expectedVersion + 1

	txf := func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, k)
		if err != nil {
			return err
		}

		if current != expectedVersion {
			return fmt.Errorf("stored version %d, expected %d: %w", current, expectedVersion, port.ErrVersionConflict)
		}

		data, err := json.Marshal(redisRecord{Version: next, Cart: payload})
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, fmt.Errorf("client.Watch: %w", port.ErrVersionConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("client.Watch: %w", err)
	}

	return next, nil
}

// storedVersion treats an unreadable record as version 0, matching Load.
func storedVersion(ctx context.Context, tx *redis.Tx, k string) (int64, error) {
	data, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("tx.Get: %w", err)
	}

	var record redisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return 0, nil
	}

	return record.Version, nil
}

func snapshotKey(key string) string {
	return fmt.Sprintf("cart:snapshot:%s", key)
}
