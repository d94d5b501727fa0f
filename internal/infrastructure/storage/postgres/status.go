package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/status"
)

const statusTable = "sync_status"

// statusRow is the stored form of status.RunStatus.
type statusRow struct {
	SiteID     string     `db:"site_id"`
	RunID      string     `db:"run_id"`
	Phase      string     `db:"phase"`
	Counters   []byte     `db:"counters"`
	Error      *string    `db:"error"`
	ErrorCode  *string    `db:"error_code"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

var statusColumns = ExtractDBColumns[statusRow]()

func toStatusRow(s *status.RunStatus) (statusRow, error) {
	counters, err := json.Marshal(s.Counters)
	if err != nil {
		return statusRow{}, fmt.Errorf("marshal counters: %w", err)
	}
	return statusRow{
		SiteID:     s.SiteID,
		RunID:      s.RunID,
		Phase:      s.Phase.String(),
		Counters:   counters,
		Error:      s.Error,
		ErrorCode:  s.ErrorCode,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		UpdatedAt:  s.UpdatedAt,
	}, nil
}

func (r statusRow) toStatus() (*status.RunStatus, error) {
	phase, err := status.ParsePhase(r.Phase)
	if err != nil {
		return nil, err
	}
	s := &status.RunStatus{
		RunID:      r.RunID,
		SiteID:     r.SiteID,
		Phase:      phase,
		Error:      r.Error,
		ErrorCode:  r.ErrorCode,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if len(r.Counters) > 0 {
		if err := json.Unmarshal(r.Counters, &s.Counters); err != nil {
			return nil, fmt.Errorf("unmarshal counters: %w", err)
		}
	}
	return s, nil
}

// StatusStore is the status.Store of a PostgreSQL site.
type StatusStore struct {
	txm *TxManager
}

var _ status.Store = (*StatusStore)(nil)

// NewStatusStore creates a status store.
func NewStatusStore(txm *TxManager) *StatusStore {
	return &StatusStore{txm: txm}
}

func (s *StatusStore) Save(ctx context.Context, rs *status.RunStatus) error {
	row, err := toStatusRow(rs)
	if err != nil {
		return err
	}

	sql, args, err := upsertQuery(statusTable, []string{"site_id"}, StructToMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build status upsert: %w", err)
	}

	if _, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save sync status: %w", err)
	}
	return nil
}

func (s *StatusStore) Latest(ctx context.Context, siteID string) (*status.RunStatus, error) {
	sql, args, err := builder().
		Select(statusColumns...).
		From(statusTable).
		Where(squirrel.Eq{"site_id": siteID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status query: %w", err)
	}

	var row statusRow
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(statusTable, siteID)
		}
		return nil, fmt.Errorf("get sync status: %w", err)
	}
	return row.toStatus()
}
