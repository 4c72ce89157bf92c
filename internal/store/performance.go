package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/skilltune/internal/performance"
)

// LoadPerformance returns the stored record for (studentID, gameID).
func (s *Store) LoadPerformance(ctx context.Context, studentID, gameID string) (performance.Record, bool, error) {
	q := s.b.Select("data").
		From(entsql.Table(tablePerformance)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("game_id", gameID),
		))
	blobs, err := s.queryData(ctx, q)
	if err != nil {
		return performance.Record{}, false, fmt.Errorf("query performance: %w", err)
	}
	if len(blobs) == 0 {
		return performance.Record{}, false, nil
	}
	rec, err := decodeRecord(blobs[0])
	if err != nil {
		return performance.Record{}, false, err
	}
	return rec, true, nil
}

// SavePerformance replaces the stored record for (studentID, gameID).
func (s *Store) SavePerformance(ctx context.Context, studentID, gameID string, rec performance.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal performance: %w", err)
	}
	q := s.b.Insert(tablePerformance).
		Columns("student_id", "game_id", "data", "updated_at").
		Values(studentID, gameID, string(data), time.Now().UnixNano()).
		OnConflict(
			entsql.ConflictColumns("student_id", "game_id"),
			entsql.ResolveWithNewValues(),
		)
	if err := s.exec(ctx, q); err != nil {
		return fmt.Errorf("save performance: %w", err)
	}
	return nil
}

// ListPerformance returns every stored record for studentID keyed by game.
func (s *Store) ListPerformance(ctx context.Context, studentID string) (map[string]performance.Record, error) {
	q := s.b.Select("game_id", "data").
		From(entsql.Table(tablePerformance)).
		Where(entsql.EQ("student_id", studentID))
	query, args := q.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query performance: %w", err)
	}
	defer rows.Close()

	out := make(map[string]performance.Record)
	for rows.Next() {
		var game, data string
		if err := rows.Scan(&game, &data); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out[game] = rec
	}
	return out, rows.Err()
}

func decodeRecord(data string) (performance.Record, error) {
	var rec performance.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return performance.Record{}, fmt.Errorf("unmarshal performance: %w", err)
	}
	if rec.Interactions == nil {
		rec.Interactions = []performance.Interaction{}
	}
	return rec, nil
}
