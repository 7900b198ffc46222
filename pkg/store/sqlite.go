package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uber/h3-go/v4"

	"stakeout/pkg/db"
	"stakeout/pkg/model"
)

// DefaultH3Resolution gives cells of roughly 300 m² which keeps one parcel's
// stakes in a handful of cells.
const DefaultH3Resolution = 12

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	StateStore
	StakeStore

	// Ping checks the connection.
	Ping(ctx context.Context) error
	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db    *db.DB
	h3Res int
	now   func() time.Time
}

// NewSQLiteStore creates a new store indexing stakes at the given H3 resolution.
func NewSQLiteStore(d *db.DB, h3Resolution int) *SQLiteStore {
	if h3Resolution < 0 || h3Resolution > 15 {
		h3Resolution = DefaultH3Resolution
	}
	return &SQLiteStore{db: d, h3Res: h3Resolution, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, s.now().UTC())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Stakes ---

const stakeColumns = `id, session_id, target_id, target_lat, target_lon, lat, lon, residual_m, bearing_deg, ring, h3_cell, created_at`

// RecordStake stores s, filling in ID, H3 cell and timestamp when unset.
func (s *SQLiteStore) RecordStake(ctx context.Context, st *model.Stake) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	st.CreatedAt = st.CreatedAt.UTC()

	cell, err := s.cellFor(st.Lat, st.Lon)
	if err != nil {
		return fmt.Errorf("index stake: %w", err)
	}
	st.H3Cell = cell.String()

	query := `INSERT INTO stakes (` + stakeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		st.ID, st.SessionID, st.TargetID, st.TargetLat, st.TargetLon,
		st.Lat, st.Lon, st.ResidualM, st.BearingDeg, st.Ring, st.H3Cell, st.CreatedAt)
	return err
}

// GetStake returns nil, nil when id is unknown.
func (s *SQLiteStore) GetStake(ctx context.Context, id string) (*model.Stake, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = ?`, id)
	st, err := scanStake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

func (s *SQLiteStore) RecentStakes(ctx context.Context, limit int) ([]*model.Stake, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectStakes(rows)
}

func (s *SQLiteStore) StakesNear(ctx context.Context, lat, lon float64, k int) ([]*model.Stake, error) {
	if k < 0 {
		k = 0
	}
	origin, err := s.cellFor(lat, lon)
	if err != nil {
		return nil, fmt.Errorf("index query point: %w", err)
	}
	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, fmt.Errorf("grid disk: %w", err)
	}

	args := make([]any, 0, len(disk))
	for _, c := range disk {
		args = append(args, c.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE h3_cell IN (`+placeholders+`) ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	return collectStakes(rows)
}

func (s *SQLiteStore) cellFor(lat, lon float64) (h3.Cell, error) {
	return h3.LatLngToCell(h3.NewLatLng(lat, lon), s.h3Res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStake(row scanner) (*model.Stake, error) {
	var st model.Stake
	var ring sql.NullString
	err := row.Scan(&st.ID, &st.SessionID, &st.TargetID, &st.TargetLat, &st.TargetLon,
		&st.Lat, &st.Lon, &st.ResidualM, &st.BearingDeg, &ring, &st.H3Cell, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	st.Ring = ring.String
	return &st, nil
}

func collectStakes(rows *sql.Rows) ([]*model.Stake, error) {
	defer rows.Close()
	results := []*model.Stake{}
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, st)
	}
	return results, rows.Err()
}
