package store

import (
	"context"

	"stakeout/pkg/model"
)

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// StakeStore is the as-staked log.
type StakeStore interface {
	RecordStake(ctx context.Context, s *model.Stake) error
	GetStake(ctx context.Context, id string) (*model.Stake, error)
	RecentStakes(ctx context.Context, limit int) ([]*model.Stake, error)
	// StakesNear returns stakes whose H3 cell is within k rings of the cell
	// containing lat/lon, newest first.
	StakesNear(ctx context.Context, lat, lon float64, k int) ([]*model.Stake, error)
}
