// Package memory contains in-process implementations of repository interfaces.
// Used by -storage=memory and by service tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
)

// UserRepo is a map-backed UserRepository.
type UserRepo struct {
	mu    sync.RWMutex
	byUID map[string]model.User
}

// NewUserRepo returns an empty user repository.
func NewUserRepo() *UserRepo { return &UserRepo{byUID: make(map[string]model.User)} }

// Create stores u unless its uid, provider identity or password email is taken.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, x := range r.byUID {
		switch {
		case x.UID == u.UID:
			return errs.ErrAlreadyExists
		case u.ProviderID == model.ProviderPassword && x.ProviderID == model.ProviderPassword && email != "" && x.Email == email:
			return errs.ErrAlreadyExists
		case x.ProviderID == u.ProviderID && x.ProviderSubject == u.ProviderSubject:
			return errs.ErrAlreadyExists
		}
	}
	cp := *u
	cp.Email = email
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.byUID[cp.UID] = cp
	return nil
}

// GetByUID loads a user by uid.
func (r *UserRepo) GetByUID(_ context.Context, uid string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byUID[uid]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// GetByEmail loads a password user by email.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(email)
	return r.find(func(u model.User) bool {
		return u.ProviderID == model.ProviderPassword && u.Email == email
	})
}

// GetByProvider loads a user by federated identity.
func (r *UserRepo) GetByProvider(_ context.Context, providerID, subject string) (*model.User, error) {
	return r.find(func(u model.User) bool {
		return u.ProviderID == providerID && u.ProviderSubject == subject
	})
}

func (r *UserRepo) find(match func(model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byUID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

// PtoRepo is a map-backed PtoRepository.
type PtoRepo struct {
	mu   sync.RWMutex
	recs map[string]model.PtoRecord
}

// NewPtoRepo returns an empty pto collection.
func NewPtoRepo() *PtoRepo { return &PtoRepo{recs: make(map[string]model.PtoRecord)} }

// List returns a deep copy of the collection.
func (r *PtoRepo) List(_ context.Context) (model.PtoCollection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(model.PtoCollection, len(r.recs))
	for uid, rec := range r.recs {
		out[uid] = cloneRecord(rec)
	}
	return out, nil
}

// CreateIfAbsent stores rec when its uid is unused.
func (r *PtoRepo) CreateIfAbsent(_ context.Context, rec model.PtoRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[rec.UID]; ok {
		return false, nil
	}
	r.recs[rec.UID] = cloneRecord(rec)
	return true, nil
}

// UpdateYears replaces the years of uid.
func (r *PtoRepo) UpdateYears(_ context.Context, uid string, years model.Years) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[uid]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Years = cloneYears(years)
	r.recs[uid] = rec
	return nil
}

// UpdateName replaces the name of uid; a value-less field stores the null marker.
func (r *PtoRepo) UpdateName(_ context.Context, uid string, name model.NameField) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[uid]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Name = model.NameField{Set: true}
	if name.Value != nil {
		rec.Name = model.NameOf(*name.Value)
	}
	r.recs[uid] = rec
	return nil
}

func cloneRecord(rec model.PtoRecord) model.PtoRecord {
	out := model.PtoRecord{UID: rec.UID, Name: rec.Name, Years: cloneYears(rec.Years)}
	if rec.Name.Value != nil {
		out.Name = model.NameOf(*rec.Name.Value)
	}
	return out
}

func cloneYears(y model.Years) model.Years {
	out := make(model.Years, len(y))
	for k, v := range y {
		out[k] = v
	}
	return out
}
