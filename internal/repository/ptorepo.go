package repository

import (
	"context"

	"github.com/and161185/pto-keeper/internal/model"
)

// PtoRepository stores the pto collection: one document per uid.
// Updates replace the named field wholesale; nothing is merged.
type PtoRepository interface {
	// List returns every record in the collection.
	List(ctx context.Context) (model.PtoCollection, error)

	// CreateIfAbsent inserts rec unless a record with the same uid exists.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, rec model.PtoRecord) (bool, error)

	// UpdateYears replaces the years field. ErrNotFound if the record does not exist.
	UpdateYears(ctx context.Context, uid string, years model.Years) error

	// UpdateName replaces the name field; a NameField without Value writes the null marker.
	// ErrNotFound if the record does not exist.
	UpdateName(ctx context.Context, uid string, name model.NameField) error
}
