package model

import "fmt"

// AnonymousAccount is the account name user-scoped rows carry before
// sign-in.
const AnonymousAccount = ""

// ReservationStatus is the state of a seat reservation.
type ReservationStatus int

const (
	ReservationUnreserved ReservationStatus = 0
	ReservationReserved   ReservationStatus = 1
	ReservationWaitlisted ReservationStatus = 2
)

// ParseReservationStatus converts a stored integer into a status.
func ParseReservationStatus(n int64) (ReservationStatus, error) {
	switch s := ReservationStatus(n); s {
	case ReservationUnreserved, ReservationReserved, ReservationWaitlisted:
		return s, nil
	default:
		return 0, fmt.Errorf("unknown reservation status %d", n)
	}
}

func (s ReservationStatus) String() string {
	switch s {
	case ReservationUnreserved:
		return "unreserved"
	case ReservationReserved:
		return "reserved"
	case ReservationWaitlisted:
		return "waitlisted"
	default:
		return fmt.Sprintf("ReservationStatus(%d)", int(s))
	}
}

// MySchedule marks a session as bookmarked by an account.
type MySchedule struct {
	SessionID  string
	Account    string
	Dirty      bool
	InSchedule bool
	Timestamp  int64
}

// MyReservation records a reservation request for a session.
type MyReservation struct {
	SessionID string
	Account   string
	Status    ReservationStatus
	Timestamp int64
}

// MyFeedbackSubmitted records that feedback for a session was submitted.
type MyFeedbackSubmitted struct {
	SessionID string
	Account   string
	Dirty     bool
}

// MyViewedVideo records that a video was watched.
type MyViewedVideo struct {
	VideoID string
	Account string
	Dirty   bool
}

// Feedback is a locally stored feedback form awaiting upload.
type Feedback struct {
	SessionID       string
	Rating          int64
	AnswerRelevance int64
	AnswerContent   int64
	AnswerSpeaker   int64
	Comments        string
	Synced          bool
	Updated         int64
}
