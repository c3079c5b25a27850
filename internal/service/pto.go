package service

import (
	"context"
	"fmt"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/and161185/pto-keeper/internal/repository"
)

// PtoService exposes the pto collection operations.
// Each write replaces one top-level field of the record; callers carry forward
// any sibling year entries they want to keep.
type PtoService interface {
	List(ctx context.Context) (model.PtoCollection, error)
	// CreateIfAbsent seeds uid with a zero-day entry for seedYear unless the record exists.
	CreateIfAbsent(ctx context.Context, uid string, seedYear int) (bool, error)
	UpdateYears(ctx context.Context, uid string, years model.Years) error
	SetName(ctx context.Context, uid, name string) error
	// RemoveName writes the null marker; the field stays present.
	RemoveName(ctx context.Context, uid string) error
}

// PtoServiceImpl is the default PtoService.
type PtoServiceImpl struct {
	recs repository.PtoRepository
}

// NewPtoService constructs PtoService.
func NewPtoService(recs repository.PtoRepository) *PtoServiceImpl {
	return &PtoServiceImpl{recs: recs}
}

// List returns every record.
func (s *PtoServiceImpl) List(ctx context.Context) (model.PtoCollection, error) {
	return s.recs.List(ctx)
}

// CreateIfAbsent creates the seed record for uid.
func (s *PtoServiceImpl) CreateIfAbsent(ctx context.Context, uid string, seedYear int) (bool, error) {
	if err := requireUID(uid); err != nil {
		return false, err
	}
	return s.recs.CreateIfAbsent(ctx, model.PtoRecord{UID: uid, Years: model.SeedYears(seedYear)})
}

// UpdateYears replaces the years of uid. A nil mapping stores an empty one.
func (s *PtoServiceImpl) UpdateYears(ctx context.Context, uid string, years model.Years) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	if years == nil {
		years = model.Years{}
	}
	return s.recs.UpdateYears(ctx, uid, years)
}

// SetName replaces the name of uid.
func (s *PtoServiceImpl) SetName(ctx context.Context, uid, name string) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	return s.recs.UpdateName(ctx, uid, model.NameOf(name))
}

// RemoveName sets the name of uid to null.
func (s *PtoServiceImpl) RemoveName(ctx context.Context, uid string) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	return s.recs.UpdateName(ctx, uid, model.NullName())
}

func requireUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: empty uid", errs.ErrInvalidArgument)
	}
	return nil
}
