package appointments

import (
	"context"
	"errors"
	"testing"
)

func TestGate_AuthorizeParticipant(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Put(Appointment{ID: 10, PatientID: 1, DoctorID: 2, Status: StatusConfirmed})

	g := NewGate(repo, nil, 0)

	if _, err := g.AuthorizeParticipant(context.Background(), 10, 1); err != nil {
		t.Fatalf("patient should be authorized: %v", err)
	}
	if _, err := g.AuthorizeParticipant(context.Background(), 10, 2); err != nil {
		t.Fatalf("doctor should be authorized: %v", err)
	}
	if _, err := g.AuthorizeParticipant(context.Background(), 10, 3); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := g.AuthorizeParticipant(context.Background(), 99, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGate_ConfirmCallStart(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Put(Appointment{ID: 10, PatientID: 1, DoctorID: 2, Status: StatusPending})

	g := NewGate(repo, nil, 0)

	if err := g.ConfirmCallStart(context.Background(), 10); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}

	repo.Put(Appointment{ID: 10, PatientID: 1, DoctorID: 2, Status: StatusConfirmed})
	if err := g.ConfirmCallStart(context.Background(), 10); err != nil {
		t.Fatalf("expected confirmed, got %v", err)
	}
}

func TestAppointment_Counterpart(t *testing.T) {
	a := Appointment{ID: 10, PatientID: 1, DoctorID: 2}
	if got := a.Counterpart(1); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := a.Counterpart(2); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := a.Counterpart(3); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
