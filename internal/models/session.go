package models

// SessionSummary is the history view of a finalized session.
type SessionSummary struct {
	// ID is the unique identifier for the session (UUID format).
	ID string

	// Name is the display name. Generated from participant names when the
	// session was finalized without one.
	Name string

	// Slug is a URL-friendly form of Name.
	Slug string

	// Currency is the ISO 4217 code the amounts are expressed in.
	Currency string

	// GroupID is the owning group, empty for ad-hoc sessions.
	GroupID string

	// PayerID is the participant who paid the receipt.
	PayerID string

	// GrandTotal is the receipt total in minor units.
	GrandTotal int64

	// ParticipantCount is the number of people on the session.
	ParticipantCount int

	// FinalizedAt is the Unix timestamp when the session was finalized.
	FinalizedAt int64
}
