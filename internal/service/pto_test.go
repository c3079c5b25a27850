package service

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/and161185/pto-keeper/internal/repository/memory"
	"github.com/google/go-cmp/cmp"
)

func TestPto_CreateIfAbsent_SeedsOnce(t *testing.T) {
	t.Parallel()
	s := NewPtoService(memory.NewPtoRepo())
	ctx := context.Background()

	created, err := s.CreateIfAbsent(ctx, "u1", 2024)
	if err != nil || !created {
		t.Fatalf("CreateIfAbsent: created=%v err=%v", created, err)
	}
	if err := s.UpdateYears(ctx, "u1", model.Years{2024: {Days: 5}}); err != nil {
		t.Fatalf("UpdateYears: %v", err)
	}
	created, err = s.CreateIfAbsent(ctx, "u1", 2025)
	if err != nil || created {
		t.Fatalf("second CreateIfAbsent must be a no-op: created=%v err=%v", created, err)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff(model.Years{2024: {Days: 5}}, all["u1"].Years); diff != "" {
		t.Fatalf("years mismatch (-want +got):\n%s", diff)
	}
}

func TestPto_UpdateYears_ReplacesWholesale(t *testing.T) {
	t.Parallel()
	s := NewPtoService(memory.NewPtoRepo())
	ctx := context.Background()
	if _, err := s.CreateIfAbsent(ctx, "u1", 2024); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}

	want := model.Years{2025: {Days: 1.5}}
	if err := s.UpdateYears(ctx, "u1", want); err != nil {
		t.Fatalf("UpdateYears: %v", err)
	}
	all, _ := s.List(ctx)
	if diff := cmp.Diff(want, all["u1"].Years); diff != "" {
		t.Fatalf("years must be replaced, not merged (-want +got):\n%s", diff)
	}

	if err := s.UpdateYears(ctx, "ghost", want); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPto_NameLifecycle(t *testing.T) {
	t.Parallel()
	s := NewPtoService(memory.NewPtoRepo())
	ctx := context.Background()
	if _, err := s.CreateIfAbsent(ctx, "u1", 2024); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	all, _ := s.List(ctx)
	if all["u1"].Name.Set {
		t.Fatalf("fresh record must not carry a name field")
	}

	if err := s.SetName(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if err := s.RemoveName(ctx, "u1"); err != nil {
		t.Fatalf("RemoveName: %v", err)
	}
	all, _ = s.List(ctx)
	if !all["u1"].Name.IsNull() {
		t.Fatalf("want null marker, got %+v", all["u1"].Name)
	}
}

func TestPto_EmptyUID(t *testing.T) {
	t.Parallel()
	s := NewPtoService(memory.NewPtoRepo())
	ctx := context.Background()

	if _, err := s.CreateIfAbsent(ctx, "", 2024); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	if err := s.UpdateYears(ctx, "", nil); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("UpdateYears: %v", err)
	}
	if err := s.SetName(ctx, "", "x"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("SetName: %v", err)
	}
	if err := s.RemoveName(ctx, ""); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("RemoveName: %v", err)
	}
}
