package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
)

// PtoRepo implements PtoRepository using PostgreSQL.
// Each document is a row; years is stored as jsonb keyed by year.
type PtoRepo struct{ db *DB }

// NewPtoRepo constructs a pto repository.
func NewPtoRepo(db *DB) *PtoRepo { return &PtoRepo{db: db} }

// List returns the whole collection.
func (r *PtoRepo) List(ctx context.Context) (model.PtoCollection, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT uid, years, name, name_present FROM pto_records ORDER BY uid`)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make(model.PtoCollection)
	for rows.Next() {
		var (
			rec     model.PtoRecord
			rawYrs  []byte
			name    *string
			present bool
		)
		if err := rows.Scan(&rec.UID, &rawYrs, &name, &present); err != nil {
			return nil, err
		}
		rec.Years = model.Years{}
		if len(rawYrs) > 0 {
			if err := json.Unmarshal(rawYrs, &rec.Years); err != nil {
				return nil, fmt.Errorf("decode years for %s: %w", rec.UID, err)
			}
		}
		rec.Name = model.NameField{Set: present, Value: name}
		out[rec.UID] = rec
	}
	return out, dbErr(rows.Err())
}

// CreateIfAbsent inserts rec; an existing row with the same uid is left untouched.
func (r *PtoRepo) CreateIfAbsent(ctx context.Context, rec model.PtoRecord) (bool, error) {
	years, err := encodeYears(rec.Years)
	if err != nil {
		return false, err
	}
	const q = `
INSERT INTO pto_records (uid, years, name, name_present)
VALUES ($1, $2, $3, $4)
ON CONFLICT (uid) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, rec.UID, years, rec.Name.Value, rec.Name.Set)
	if err != nil {
		return false, dbErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateYears replaces the years document of uid.
func (r *PtoRepo) UpdateYears(ctx context.Context, uid string, years model.Years) error {
	b, err := encodeYears(years)
	if err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, `UPDATE pto_records SET years=$2, updated_at=now() WHERE uid=$1`, uid, b)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdateName writes name, or the null marker when name has no value.
func (r *PtoRepo) UpdateName(ctx context.Context, uid string, name model.NameField) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE pto_records SET name=$2, name_present=true, updated_at=now() WHERE uid=$1`, uid, name.Value)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func encodeYears(y model.Years) ([]byte, error) {
	if y == nil {
		y = model.Years{}
	}
	return json.Marshal(y)
}
