package appointments

import "time"

// Appointment is the slice of the scheduling subsystem the signaling layer
// depends on. Booking, rescheduling and the rest of the CRUD surface are
// owned elsewhere; this package only reads.
//
// The appointment id doubles as the call session id: it scopes every signal
// and is created once, at booking time.

type Appointment struct {
	ID        int64  `json:"id" db:"id"`
	PatientID int64  `json:"patient_id" db:"patient_id"`
	DoctorID  int64  `json:"doctor_id" db:"doctor_id"`
	Status    Status `json:"status" db:"status"`

	ScheduledAt time.Time `json:"appointment_date" db:"appointment_date"`
	TimeSlot    string    `json:"time_slot" db:"time_slot"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Participant reports whether userID is one of the two parties bound to the
// appointment.
func (a Appointment) Participant(userID int64) bool {
	return userID == a.PatientID || userID == a.DoctorID
}

// Counterpart returns the other party's user id, or 0 if userID is not a
// participant.
func (a Appointment) Counterpart(userID int64) int64 {
	switch userID {
	case a.PatientID:
		return a.DoctorID
	case a.DoctorID:
		return a.PatientID
	default:
		return 0
	}
}
