package model

import (
	"fmt"
	"time"
)

// Status is the user-driven application state of a job.
//
//	new -> interested -> applied -> responded -> phone_screen -> interview_scheduled
//	    -> interviewed -> offer_received -> accepted | declined_offer
//
// Any open state may move to rejected, on_hold or follow_up. on_hold and
// follow_up may return to any open state. accepted, declined_offer and
// rejected are terminal.
type Status string

const (
	StatusNew                Status = "new"
	StatusInterested         Status = "interested"
	StatusApplied            Status = "applied"
	StatusResponded          Status = "responded"
	StatusPhoneScreen        Status = "phone_screen"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusInterviewed        Status = "interviewed"
	StatusOfferReceived      Status = "offer_received"
	StatusAccepted           Status = "accepted"
	StatusDeclinedOffer      Status = "declined_offer"
	StatusRejected           Status = "rejected"
	StatusOnHold             Status = "on_hold"
	StatusFollowUp           Status = "follow_up"
)

var progression = []Status{
	StatusNew,
	StatusInterested,
	StatusApplied,
	StatusResponded,
	StatusPhoneScreen,
	StatusInterviewScheduled,
	StatusInterviewed,
	StatusOfferReceived,
}

var validTransitions = buildTransitions()

func buildTransitions() map[Status][]Status {
	t := make(map[Status][]Status)
	side := []Status{StatusRejected, StatusOnHold, StatusFollowUp}

	for i, s := range progression {
		next := append([]Status(nil), progression[i+1:]...)
		if s == StatusOfferReceived {
			next = append(next, StatusAccepted, StatusDeclinedOffer)
		}
		t[s] = append(next, side...)
	}

	// Parked states can resume anywhere open.
	for _, parked := range []Status{StatusOnHold, StatusFollowUp} {
		next := append([]Status(nil), progression...)
		for _, s := range side {
			if s != parked {
				next = append(next, s)
			}
		}
		t[parked] = next
	}
	// accepted, declined_offer and rejected are terminal
	return t
}

// ParseStatus converts a raw string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusAccepted, StatusDeclinedOffer, StatusRejected, StatusOnHold, StatusFollowUp:
		return st, nil
	}
	for _, p := range progression {
		if p == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from -> to is permitted.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave s.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// StatusChange is one append-only row of a job's status history.
type StatusChange struct {
	JobID int64
	From  Status // empty for the first recorded change
	To    Status
	At    time.Time
	Note  string
}
