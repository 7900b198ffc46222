package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeout/pkg/db"
	"stakeout/pkg/geo"
	"stakeout/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d, DefaultH3Resolution)
}

func TestSQLiteStore_State(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok := store.GetState(ctx, "device_pixel_ratio")
	assert.False(t, ok)

	require.NoError(t, store.SetState(ctx, "device_pixel_ratio", "2.625"))
	val, ok := store.GetState(ctx, "device_pixel_ratio")
	assert.True(t, ok)
	assert.Equal(t, "2.625", val)

	require.NoError(t, store.SetState(ctx, "device_pixel_ratio", "3"))
	val, _ = store.GetState(ctx, "device_pixel_ratio")
	assert.Equal(t, "3", val)

	require.NoError(t, store.DeleteState(ctx, "device_pixel_ratio"))
	_, ok = store.GetState(ctx, "device_pixel_ratio")
	assert.False(t, ok)

	assert.NoError(t, store.Ping(ctx))
}

func TestSQLiteStore_RecordStake(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	st := &model.Stake{
		SessionID: "s-1",
		TargetID:  "parcel-7",
		TargetLat: 46.6263,
		TargetLon: 14.2230,
		Lat:       46.62630009,
		Lon:       14.2230,
		ResidualM: 0.01,
		Ring:      "1 cm",
	}
	require.NoError(t, store.RecordStake(ctx, st))
	assert.NotEmpty(t, st.ID)
	assert.NotEmpty(t, st.H3Cell)
	assert.False(t, st.CreatedAt.IsZero())

	got, err := store.GetStake(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st.TargetID, got.TargetID)
	assert.Equal(t, st.H3Cell, got.H3Cell)
	assert.Equal(t, "1 cm", got.Ring)
	assert.InDelta(t, st.Lat, got.Lat, 1e-12)
	assert.WithinDuration(t, st.CreatedAt, got.CreatedAt, time.Millisecond)

	missing, err := store.GetStake(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_RecentStakes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.RecordStake(ctx, &model.Stake{
			ID:        id,
			TargetID:  "pt",
			Lat:       46.6263,
			Lon:       14.2230,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.RecentStakes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestSQLiteStore_StakesNear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	origin := geo.Point{Lat: 46.6263, Lon: 14.2230}
	far := geo.DestinationPoint(origin, 5000, 45)

	require.NoError(t, store.RecordStake(ctx, &model.Stake{ID: "here", Lat: origin.Lat, Lon: origin.Lon}))
	near := geo.DestinationPoint(origin, 15, 90)
	require.NoError(t, store.RecordStake(ctx, &model.Stake{ID: "next-door", Lat: near.Lat, Lon: near.Lon}))
	require.NoError(t, store.RecordStake(ctx, &model.Stake{ID: "far", Lat: far.Lat, Lon: far.Lon}))

	same, err := store.StakesNear(ctx, origin.Lat, origin.Lon, 0)
	require.NoError(t, err)
	ids := stakeIDs(same)
	assert.Contains(t, ids, "here")
	assert.NotContains(t, ids, "far")

	// a res-12 cell is ~10 m across, so 3 rings comfortably covers 15 m
	around, err := store.StakesNear(ctx, origin.Lat, origin.Lon, 3)
	require.NoError(t, err)
	ids = stakeIDs(around)
	assert.ElementsMatch(t, []string{"here", "next-door"}, ids)
}

func stakeIDs(stakes []*model.Stake) []string {
	out := make([]string, 0, len(stakes))
	for _, s := range stakes {
		out = append(out, s.ID)
	}
	return out
}
