package appointments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("appointments: not found")

// Repository is the read contract against the appointment store.
type Repository interface {
	Get(ctx context.Context, id int64) (Appointment, error)
}

// PostgresRepo reads appointments from the shared Postgres instance.
//
// Expected table (owned by the scheduling subsystem):
//
//	CREATE TABLE appointments (
//	    id               BIGSERIAL PRIMARY KEY,
//	    patient_id       BIGINT NOT NULL,
//	    doctor_id        BIGINT NOT NULL,
//	    status           TEXT   NOT NULL,
//	    appointment_date TIMESTAMPTZ NOT NULL,
//	    time_slot        TEXT   NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, id int64) (Appointment, error) {
	const q = `
		SELECT id, patient_id, doctor_id, status, appointment_date, time_slot
		FROM appointments
		WHERE id = $1`

	var a Appointment
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.Status, &a.ScheduledAt, &a.TimeSlot,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}
