package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hurttlocker/bahi/internal/ledger"
)

const recordColumns = 10

// SaveRun inserts a run and its records in one transaction. An empty run.ID
// is filled with a new UUID; CreatedAt is set to now.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, records []ledger.IndividualRecord) error {
	if run.InputHash == "" {
		return fmt.Errorf("run input hash cannot be empty")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()
	run.Records = len(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, input_hash, source, lexicon_version, blocks, records, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputHash, run.Source, run.LexiconVersion, run.Blocks, run.Records, run.Degraded, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		if err := insertRecords(ctx, tx, run.ID, records[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, runID string, batch []ledger.IndividualRecord) error {
	placeholders := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*recordColumns)
	for i, r := range batch {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %d: %w", r.Position, err)
		}
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, runID, r.Position, r.BlockSeq, r.IndividualID,
			r.GivenName, r.Surname, r.Relation, r.District, r.CityVillage, string(payload))
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO records (run_id, position, block_seq, individual_id, given_name, surname, relation, district, city_village, payload)
		 VALUES `+strings.Join(placeholders, ", "),
		args...,
	)
	if err != nil {
		return fmt.Errorf("inserting records: %w", err)
	}
	return nil
}

const runColumns = `id, input_hash, source, lexicon_version, blocks, records, degraded, created_at`

func scanRun(row interface{ Scan(...interface{}) error }) (*Run, error) {
	r := &Run{}
	err := row.Scan(&r.ID, &r.InputHash, &r.Source, &r.LexiconVersion, &r.Blocks, &r.Records, &r.Degraded, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	return r, nil
}

// FindRunByHash returns the most recent run for an input hash, or nil.
func (s *SQLiteStore) FindRunByHash(ctx context.Context, hash string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE input_hash = ? ORDER BY created_at DESC LIMIT 1`, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding run by hash: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so the cascade is not relied on.
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("deleting records of run %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// GetRecords returns a run's records in position order.
func (s *SQLiteStore) GetRecords(ctx context.Context, runID string) ([]ledger.IndividualRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []ledger.IndividualRecord
	for rows.Next() {
		r, err := scanPayload(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SearchRecords finds records whose name or place contains query, newest
// run first.
func (s *SQLiteStore) SearchRecords(ctx context.Context, query string, limit int) ([]RecordHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT rec.run_id, rec.payload
		 FROM records rec JOIN runs r ON r.id = rec.run_id
		 WHERE rec.given_name LIKE ? ESCAPE '\'
		    OR rec.surname LIKE ? ESCAPE '\'
		    OR rec.district LIKE ? ESCAPE '\'
		    OR rec.city_village LIKE ? ESCAPE '\'
		 ORDER BY r.created_at DESC, rec.position
		 LIMIT ?`,
		like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}
	defer rows.Close()

	var hits []RecordHit
	for rows.Next() {
		var runID, payload string
		if err := rows.Scan(&runID, &payload); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		var rec ledger.IndividualRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		hits = append(hits, RecordHit{RunID: runID, Record: rec})
	}
	return hits, rows.Err()
}

func scanPayload(rows *sql.Rows) (ledger.IndividualRecord, error) {
	var payload string
	var rec ledger.IndividualRecord
	if err := rows.Scan(&payload); err != nil {
		return rec, fmt.Errorf("scanning record row: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, fmt.Errorf("decoding record: %w", err)
	}
	return rec, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SaveOnce saves run unless a run with the same input hash exists, in which
// case the existing run is returned and reused is true.
func SaveOnce(ctx context.Context, s Store, run *Run, records []ledger.IndividualRecord) (saved *Run, reused bool, err error) {
	existing, err := s.FindRunByHash(ctx, run.InputHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}
	if err := s.SaveRun(ctx, run, records); err != nil {
		return nil, false, err
	}
	return run, false, nil
}
