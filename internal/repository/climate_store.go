package repository

import (
	"context"
	"sort"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
)

// ClimateStore reads and writes climate_records.
type ClimateStore struct {
	conn database.DBConnection
	now  func() time.Time
}

// NewClimateStore creates a ClimateStore on conn.
func NewClimateStore(conn database.DBConnection) *ClimateStore {
	return &ClimateStore{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

// FindExisting loads the stored rows sharing a key with batch, keyed by Key().
func (s *ClimateStore) FindExisting(ctx context.Context, exec tx.TxExecutor, batch []model.ClimateRecord) (map[string]model.ClimateRecord, error) {
	const op = "climate.FindExisting"
	out := make(map[string]model.ClimateRecord, len(batch))
	if len(batch) == 0 {
		return out, nil
	}
	codes, sources := make([]string, 0, 1), make([]string, 0, 1)
	for _, r := range batch {
		codes = append(codes, r.LocationCode)
		sources = append(sources, r.Source)
	}
	from, to := dateBounds(batch)

	wanted := keySet(batch)
	var rows []climateEntity
	err := exec.ExecuteQuery(ctx, &rows, tx.Query{
		Where:  map[string]interface{}{"location_code": distinct(codes), "source": distinct(sources)},
		Ranges: []tx.Range{{Column: "date", From: from, To: to}},
	})
	if err != nil {
		return nil, wrap(s.conn, op, err)
	}
	for _, row := range rows {
		rec := row.toModel()
		if _, ok := wanted[rec.Key()]; ok {
			out[rec.Key()] = rec
		}
	}
	return out, nil
}

// Upsert inserts records or rewrites their measurements on key conflict.
func (s *ClimateStore) Upsert(ctx context.Context, exec tx.TxExecutor, records []model.ClimateRecord) error {
	const op = "climate.Upsert"
	if len(records) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]climateEntity, len(records))
	for i, r := range records {
		rows[i] = toClimateEntity(r, now)
	}
	_, err := exec.ExecuteUpsert(ctx, &rows, climateKeyColumns, climateUpdateColumns)
	return wrap(s.conn, op, err)
}

// LatestDate returns the most recent stored date for a location and source.
func (s *ClimateStore) LatestDate(ctx context.Context, locationCode, source string) (time.Time, bool, error) {
	const op = "climate.LatestDate"
	var rows []climateEntity
	err := s.conn.ExecuteQuery(ctx, &rows, tx.Query{
		Where:   map[string]interface{}{"location_code": locationCode, "source": source},
		OrderBy: "date DESC",
		Limit:   1,
	})
	if err != nil {
		return time.Time{}, false, wrap(s.conn, op, err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return model.Day(rows[0].Date), true, nil
}

// Find lists the records of a location within r, oldest first.
func (s *ClimateStore) Find(ctx context.Context, locationCode string, r model.DateRange) ([]model.ClimateRecord, error) {
	const op = "climate.Find"
	var rows []climateEntity
	err := s.conn.ExecuteQuery(ctx, &rows, tx.Query{
		Where:   map[string]interface{}{"location_code": locationCode},
		Ranges:  []tx.Range{dateRange(r)},
		OrderBy: "date ASC",
	})
	if err != nil {
		return nil, wrap(s.conn, op, err)
	}
	out := make([]model.ClimateRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func dateBounds[T model.Record[T]](batch []T) (from, to time.Time) {
	for i, r := range batch {
		d := model.Day(r.RecordDate())
		if i == 0 || d.Before(from) {
			from = d
		}
		if i == 0 || d.After(to) {
			to = d
		}
	}
	return from, to
}

// dateRange turns r into a query range. Zero bounds stay open.
func dateRange(r model.DateRange) tx.Range {
	rng := tx.Range{Column: "date"}
	if !r.From.IsZero() {
		rng.From = model.Day(r.From)
	}
	if !r.To.IsZero() {
		rng.To = model.Day(r.To)
	}
	return rng
}

func keySet[T model.Record[T]](batch []T) map[string]struct{} {
	set := make(map[string]struct{}, len(batch))
	for _, r := range batch {
		set[r.Key()] = struct{}{}
	}
	return set
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
