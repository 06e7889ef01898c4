package repository

import (
	"context"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
)

// ArbovirusStore reads and writes arbovirus_records.
type ArbovirusStore struct {
	conn database.DBConnection
	now  func() time.Time
}

// NewArbovirusStore creates an ArbovirusStore on conn.
func NewArbovirusStore(conn database.DBConnection) *ArbovirusStore {
	return &ArbovirusStore{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

// FindExisting loads the stored rows sharing a key with batch, keyed by Key().
func (s *ArbovirusStore) FindExisting(ctx context.Context, exec tx.TxExecutor, batch []model.ArbovirusRecord) (map[string]model.ArbovirusRecord, error) {
	const op = "arbovirus.FindExisting"
	out := make(map[string]model.ArbovirusRecord, len(batch))
	if len(batch) == 0 {
		return out, nil
	}
	var codes, diseases, sources []string
	for _, r := range batch {
		codes = append(codes, r.LocationCode)
		diseases = append(diseases, r.DiseaseType)
		sources = append(sources, r.Source)
	}
	from, to := dateBounds(batch)

	wanted := keySet(batch)
	var rows []arbovirusEntity
	err := exec.ExecuteQuery(ctx, &rows, tx.Query{
		Where: map[string]interface{}{
			"location_code": distinct(codes),
			"disease_type":  distinct(diseases),
			"source":        distinct(sources),
		},
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

// Upsert inserts records or rewrites their counts on key conflict.
func (s *ArbovirusStore) Upsert(ctx context.Context, exec tx.TxExecutor, records []model.ArbovirusRecord) error {
	const op = "arbovirus.Upsert"
	if len(records) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]arbovirusEntity, len(records))
	for i, r := range records {
		rows[i] = toArbovirusEntity(r, now)
	}
	_, err := exec.ExecuteUpsert(ctx, &rows, arbovirusKeyColumns, arbovirusUpdateColumns)
	return wrap(s.conn, op, err)
}

// LatestDate returns the most recent stored week start for a location and
// source across every disease.
func (s *ArbovirusStore) LatestDate(ctx context.Context, locationCode, source string) (time.Time, bool, error) {
	return s.LatestDiseaseDate(ctx, locationCode, source, "")
}

// LatestDiseaseDate narrows LatestDate to one disease. An empty disease
// matches every disease.
func (s *ArbovirusStore) LatestDiseaseDate(ctx context.Context, locationCode, source, disease string) (time.Time, bool, error) {
	const op = "arbovirus.LatestDate"
	where := map[string]interface{}{"location_code": locationCode, "source": source}
	if disease != "" {
		where["disease_type"] = disease
	}
	var rows []arbovirusEntity
	err := s.conn.ExecuteQuery(ctx, &rows, tx.Query{
		Where:   where,
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

// Find lists the weekly records of a location within r, oldest first.
// An empty disease matches every disease.
func (s *ArbovirusStore) Find(ctx context.Context, locationCode, disease string, r model.DateRange) ([]model.ArbovirusRecord, error) {
	const op = "arbovirus.Find"
	where := map[string]interface{}{"location_code": locationCode}
	if disease != "" {
		where["disease_type"] = disease
	}
	var rows []arbovirusEntity
	err := s.conn.ExecuteQuery(ctx, &rows, tx.Query{
		Where:   where,
		Ranges:  []tx.Range{dateRange(r)},
		OrderBy: "date ASC, disease_type ASC",
	})
	if err != nil {
		return nil, wrap(s.conn, op, err)
	}
	out := make([]model.ArbovirusRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}
