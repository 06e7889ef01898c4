package repository

import (
	"context"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
)

// PredictionStore reads and writes prediction_records.
type PredictionStore struct {
	conn database.DBConnection
	now  func() time.Time
}

// NewPredictionStore creates a PredictionStore on conn.
func NewPredictionStore(conn database.DBConnection) *PredictionStore {
	return &PredictionStore{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

// Upsert stores rec, overwriting the prediction of the same location and period.
func (s *PredictionStore) Upsert(ctx context.Context, rec model.PredictionRecord) error {
	const op = "prediction.Upsert"
	row := toPredictionEntity(rec, s.now())
	_, err := s.conn.ExecuteUpsert(ctx, &row, predictionKeyColumns, predictionUpdateColumns)
	return wrap(s.conn, op, err)
}

// Find returns the prediction of a location for period.
func (s *PredictionStore) Find(ctx context.Context, locationCode string, period model.Period) (model.PredictionRecord, bool, error) {
	const op = "prediction.Find"
	recs, err := s.query(ctx, op, tx.Query{
		Where: map[string]interface{}{"location_code": locationCode, "period": period.String()},
		Limit: 1,
	})
	if err != nil || len(recs) == 0 {
		return model.PredictionRecord{}, false, err
	}
	return recs[0], true, nil
}

// FindByLocation lists the predictions of a location, newest period first.
func (s *PredictionStore) FindByLocation(ctx context.Context, locationCode string, limit int) ([]model.PredictionRecord, error) {
	return s.query(ctx, "prediction.FindByLocation", tx.Query{
		Where:   map[string]interface{}{"location_code": locationCode},
		OrderBy: "period DESC",
		Limit:   limit,
	})
}

// FindByPeriod lists every prediction for period ordered by location.
func (s *PredictionStore) FindByPeriod(ctx context.Context, period model.Period) ([]model.PredictionRecord, error) {
	return s.query(ctx, "prediction.FindByPeriod", tx.Query{
		Where:   map[string]interface{}{"period": period.String()},
		OrderBy: "location_code ASC",
	})
}

// FindLatest returns the most recent prediction of every location.
func (s *PredictionStore) FindLatest(ctx context.Context) ([]model.PredictionRecord, error) {
	all, err := s.query(ctx, "prediction.FindLatest", tx.Query{OrderBy: "location_code ASC, period DESC"})
	if err != nil {
		return nil, err
	}
	out := make([]model.PredictionRecord, 0, len(all))
	for _, rec := range all {
		if n := len(out); n > 0 && out[n-1].LocationCode == rec.LocationCode {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *PredictionStore) query(ctx context.Context, op string, q tx.Query) ([]model.PredictionRecord, error) {
	var rows []predictionEntity
	if err := s.conn.ExecuteQuery(ctx, &rows, q); err != nil {
		return nil, wrap(s.conn, op, err)
	}
	out := make([]model.PredictionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, wrap(s.conn, op, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
