package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/skilltune/internal/bkt"
)

// LoadKnowledge returns the stored state for (studentID, skillID). The bool
// is false when no row exists.
func (s *Store) LoadKnowledge(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, bool, error) {
	q := s.b.Select("data").
		From(entsql.Table(tableKnowledge)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("skill_id", skillID),
		))
	states, err := s.queryKnowledge(ctx, q)
	if err != nil {
		return bkt.KnowledgeState{}, false, err
	}
	if len(states) == 0 {
		return bkt.KnowledgeState{}, false, nil
	}
	return states[0], true, nil
}

// SaveKnowledge upserts st. A row whose updated_at is newer than
// st.LastUpdated is left untouched and the returned bool is false. synced
// records whether the remote store already holds this version.
func (s *Store) SaveKnowledge(ctx context.Context, st bkt.KnowledgeState, synced bool) (bool, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return false, fmt.Errorf("marshal knowledge state: %w", err)
	}
	q := s.b.Insert(tableKnowledge).
		Columns("student_id", "skill_id", "data", "updated_at", "synced").
		Values(st.StudentID, st.SkillID, string(data), st.LastUpdated.UnixNano(), boolInt(synced)).
		OnConflict(
			entsql.ConflictColumns("student_id", "skill_id"),
			entsql.ResolveWithNewValues(),
			entsql.UpdateWhere(entsql.ExprP("excluded.updated_at >= "+tableKnowledge+".updated_at")),
		)
	n, err := s.execN(ctx, q)
	if err != nil {
		return false, fmt.Errorf("save knowledge state: %w", err)
	}
	return n > 0, nil
}

// ListUnsynced returns states the remote store has not confirmed, oldest
// first. limit <= 0 means no limit.
func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]bkt.KnowledgeState, error) {
	q := s.b.Select("data").
		From(entsql.Table(tableKnowledge)).
		Where(entsql.EQ("synced", 0)).
		OrderBy("updated_at")
	if limit > 0 {
		q.Limit(limit)
	}
	return s.queryKnowledge(ctx, q)
}

// CountUnsynced returns how many states are waiting to be pushed.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	q := s.b.Select(entsql.Count("*")).
		From(entsql.Table(tableKnowledge)).
		Where(entsql.EQ("synced", 0))
	query, args := q.Query()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return n, nil
}

// MarkSynced flags the row for st as synced, but only while it still holds
// the version st describes. A newer local write stays unsynced.
func (s *Store) MarkSynced(ctx context.Context, st bkt.KnowledgeState) error {
	q := s.b.Update(tableKnowledge).
		Set("synced", 1).
		Where(entsql.And(
			entsql.EQ("student_id", st.StudentID),
			entsql.EQ("skill_id", st.SkillID),
			entsql.EQ("updated_at", st.LastUpdated.UnixNano()),
		))
	if err := s.exec(ctx, q); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// ListKnowledge returns every stored state for studentID ordered by skill.
func (s *Store) ListKnowledge(ctx context.Context, studentID string) ([]bkt.KnowledgeState, error) {
	q := s.b.Select("data").
		From(entsql.Table(tableKnowledge)).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("skill_id")
	return s.queryKnowledge(ctx, q)
}

// ResetKnowledge deletes all knowledge states and returns how many were
// removed.
func (s *Store) ResetKnowledge(ctx context.Context) (int64, error) {
	n, err := s.execN(ctx, s.b.Delete(tableKnowledge))
	if err != nil {
		return 0, fmt.Errorf("reset knowledge: %w", err)
	}
	return n, nil
}

func (s *Store) queryKnowledge(ctx context.Context, q entsql.Querier) ([]bkt.KnowledgeState, error) {
	blobs, err := s.queryData(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query knowledge states: %w", err)
	}
	out := make([]bkt.KnowledgeState, 0, len(blobs))
	for _, b := range blobs {
		var st bkt.KnowledgeState
		if err := json.Unmarshal([]byte(b), &st); err != nil {
			return nil, fmt.Errorf("unmarshal knowledge state: %w", err)
		}
		if st.Observations == nil {
			st.Observations = []bkt.Observation{}
		}
		out = append(out, st)
	}
	return out, nil
}

// queryData runs a single-column select and returns every value. Rows are
// drained before returning so the single connection is free again.
func (s *Store) queryData(ctx context.Context, q entsql.Querier) ([]string, error) {
	query, args := q.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
