package port

import "errors"

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotCorrupt  = errors.New("snapshot is corrupt")
	ErrVersionConflict  = errors.New("snapshot version conflict")
)
