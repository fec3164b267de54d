package db

import (
	"context"
	"time"
)

type CartSnapshot struct {
	SnapshotKey string
	Payload     []byte
	Version     int64
	UpdatedAt   time.Time
}

const getSnapshot = `
SELECT snapshot_key, payload, version, updated_at
FROM cart_snapshots
WHERE snapshot_key = $1
`

func (q *Queries) GetSnapshot(ctx context.Context, snapshotKey string) (CartSnapshot, error) {
	row := q.db.QueryRow(ctx, getSnapshot, snapshotKey)

	var s CartSnapshot
	err := row.Scan(&s.SnapshotKey, &s.Payload, &s.Version, &s.UpdatedAt)

	return s, err
}

const lockSnapshotVersion = `
SELECT version
FROM cart_snapshots
WHERE snapshot_key = $1
FOR UPDATE
`

func (q *Queries) LockSnapshotVersion(ctx context.Context, snapshotKey string) (int64, error) {
	row := q.db.QueryRow(ctx, lockSnapshotVersion, snapshotKey)

	var version int64
	err := row.Scan(&version)

	return version, err
}

const insertSnapshot = `
INSERT INTO cart_snapshots (snapshot_key, payload, version)
VALUES ($1, $2, $3)
ON CONFLICT (snapshot_key) DO NOTHING
`

type InsertSnapshotParams struct {
	SnapshotKey string
	Payload     []byte
	Version     int64
}

func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertSnapshot, arg.SnapshotKey, arg.Payload, arg.Version)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

const updateSnapshot = `
UPDATE cart_snapshots
SET payload    = $2,
    version    = $3,
    updated_at = NOW()
WHERE snapshot_key = $1
  AND version = $4
`

type UpdateSnapshotParams struct {
	SnapshotKey     string
	Payload         []byte
	Version         int64
	ExpectedVersion int64
}

func (q *Queries) UpdateSnapshot(ctx context.Context, arg UpdateSnapshotParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateSnapshot, arg.SnapshotKey, arg.Payload, arg.Version, arg.ExpectedVersion)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
