package repository_test

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
	"github.com/nikolayk812/cartstore/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// snapshotRepositorySuite runs the same contract against every backend.
type snapshotRepositorySuite struct {
	suite.Suite

	repo port.SnapshotRepository

	// writeRaw stores an arbitrary cart payload at version 3, bypassing the repository
	writeRaw func(key, cartPayload string)

	setup    func(s *snapshotRepositorySuite)
	teardown func()
}

func TestMemorySnapshotRepositorySuite(t *testing.T) {
	suite.Run(t, &snapshotRepositorySuite{
		setup: func(s *snapshotRepositorySuite) {
			s.repo = repository.NewMemory()
		},
	})
}

func TestRedisSnapshotRepositorySuite(t *testing.T) {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
	)

	suite.Run(t, &snapshotRepositorySuite{
		setup: func(s *snapshotRepositorySuite) {
			mr = miniredis.RunT(s.T())
			client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s.repo = repository.NewRedis(client)
			s.writeRaw = func(key, cartPayload string) {
				record := fmt.Sprintf(`{"version":3,"cart":%s}`, cartPayload)
				s.Require().NoError(mr.Set("cart:snapshot:"+key, record))
			}
		},
		teardown: func() {
			if client != nil {
				_ = client.Close()
			}
		},
	})
}

func TestPostgresSnapshotRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	var pool *pgxpool.Pool

	suite.Run(t, &snapshotRepositorySuite{
		setup: func(s *snapshotRepositorySuite) {
			ctx := s.T().Context()

			_, connStr, err := startPostgres(ctx)
			s.Require().NoError(err)

			pool, err = pgxpool.New(ctx, connStr)
			s.Require().NoError(err)

			s.repo = repository.NewPostgres(pool)
			s.writeRaw = func(key, cartPayload string) {
				_, err := pool.Exec(s.T().Context(),
					"INSERT INTO cart_snapshots (snapshot_key, payload, version) VALUES ($1, $2::jsonb, 3)", key, cartPayload)
				s.Require().NoError(err)
			}
		},
		teardown: func() {
			if pool != nil {
				pool.Close()
			}
		},
	})
}

// before all tests in the suite
func (suite *snapshotRepositorySuite) SetupSuite() {
	suite.setup(suite)
}

// after all tests in the suite
func (suite *snapshotRepositorySuite) TearDownSuite() {
	if suite.teardown != nil {
		suite.teardown()
	}
}

func (suite *snapshotRepositorySuite) TestLoad() {
	t := suite.T()
	ctx := t.Context()

	_, err := suite.repo.Load(ctx, gofakeit.UUID())
	require.ErrorIs(t, err, port.ErrSnapshotNotFound)

	_, err = suite.repo.Load(ctx, "")
	require.EqualError(t, err, "key is empty")
}

func (suite *snapshotRepositorySuite) TestSave() {
	tests := []struct {
		name            string
		setupCarts      []domain.Cart
		cart            domain.Cart
		expectedVersion int64
		wantVersion     int64
		wantError       error
	}{
		{
			name:            "save first snapshot: ok",
			cart:            randomCart(3),
			expectedVersion: 0,
			wantVersion:     1,
		},
		{
			name:            "save empty cart: ok",
			cart:            domain.Cart{},
			expectedVersion: 0,
			wantVersion:     1,
		},
		{
			name:            "overwrite existing snapshot: ok",
			setupCarts:      []domain.Cart{randomCart(1), randomCart(2)},
			cart:            randomCart(4),
			expectedVersion: 2,
			wantVersion:     3,
		},
		{
			name:            "stale expected version: conflict",
			setupCarts:      []domain.Cart{randomCart(1), randomCart(2)},
			cart:            randomCart(1),
			expectedVersion: 1,
			wantError:       port.ErrVersionConflict,
		},
		{
			name:            "expected version ahead of stored: conflict",
			cart:            randomCart(1),
			expectedVersion: 5,
			wantError:       port.ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()
			key := gofakeit.UUID()

			var lastCart domain.Cart
			for i, c := range tt.setupCarts {
				v, err := suite.repo.Save(ctx, key, c, int64(i))
				require.NoError(t, err)
				require.Equal(t, int64(i+1), v)
				lastCart = c
			}

			version, err := suite.repo.Save(ctx, key, tt.cart, tt.expectedVersion)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)

				// the stored snapshot is untouched
				if len(tt.setupCarts) > 0 {
					snapshot, err := suite.repo.Load(ctx, key)
					require.NoError(t, err)
					assert.Equal(t, int64(len(tt.setupCarts)), snapshot.Version)
					assertCart(t, lastCart, snapshot.Cart)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)

			// Verify the snapshot round-trips with order preserved
			snapshot, err := suite.repo.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, snapshot.Version)
			assertCart(t, tt.cart, snapshot.Cart)
		})
	}
}

func (suite *snapshotRepositorySuite) TestSaveEmptyKey() {
	t := suite.T()

	_, err := suite.repo.Save(t.Context(), "", randomCart(1), 0)
	require.EqualError(t, err, "key is empty")
}

func (suite *snapshotRepositorySuite) TestLoadCorrupt() {
	if suite.writeRaw == nil {
		suite.T().Skip("backend has no raw access")
	}

	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "amount below one",
			payload: `{"items":[{"id":1,"amount":0,"price":{"amount":"1","currency":"USD"}}]}`,
		},
		{
			name:    "duplicated product",
			payload: `{"items":[{"id":1,"amount":1,"price":{"amount":"1","currency":"USD"}},{"id":1,"amount":2,"price":{"amount":"1","currency":"USD"}}]}`,
		},
		{
			name:    "unknown currency",
			payload: `{"items":[{"id":1,"amount":1,"price":{"amount":"1","currency":"ABCD"}}]}`,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			key := gofakeit.UUID()

			suite.writeRaw(key, tt.payload)

			snapshot, err := suite.repo.Load(t.Context(), key)
			require.ErrorIs(t, err, port.ErrSnapshotCorrupt)

			// the stored version survives so the next save can overwrite it
			assert.Equal(t, int64(3), snapshot.Version)

			version, err := suite.repo.Save(t.Context(), key, randomCart(1), snapshot.Version)
			require.NoError(t, err)
			assert.Equal(t, int64(4), version)
		})
	}
}

func TestRedisRepository_TruncatedRecord(t *testing.T) {
	ctx := t.Context()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() {
		_ = client.Close()
	}()
	repo := repository.NewRedis(client)

	tests := []struct {
		name   string
		record string
	}{
		{
			name:   "truncated record",
			record: `{"version":4,"cart":{"items":[{"id":1,"am`,
		},
		{
			name:   "not json",
			record: `cart`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := gofakeit.UUID()
			require.NoError(t, mr.Set("cart:snapshot:"+key, tt.record))

			snapshot, err := repo.Load(ctx, key)
			require.ErrorIs(t, err, port.ErrSnapshotCorrupt)
			assert.Zero(t, snapshot.Version)
			assert.Zero(t, snapshot.Cart.Len())

			// an unreadable record counts as version 0 and is overwritten
			expected := randomCart(2)
			version, err := repo.Save(ctx, key, expected, snapshot.Version)
			require.NoError(t, err)
			assert.Equal(t, int64(1), version)

			loaded, err := repo.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, int64(1), loaded.Version)
			assertCart(t, expected, loaded.Cart)
		})
	}
}
