package domain

import "time"

type SessionID string
type UserID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SummaryMode selects which kind of summary the Scribe produces.
type SummaryMode string

const (
	// SummaryFiche is a standalone revision sheet for the current session.
	SummaryFiche SummaryMode = "fiche"
	// SummaryFusion is a dense recap meant to be published on the parent session.
	SummaryFusion SummaryMode = "fusion"
)

// Specialist identifies the one-shot persona triggers a user can press
// outside the normal chat flow.
type Specialist string

const (
	SpecialistQuiz  Specialist = "quiz"
	SpecialistCoach Specialist = "coach"
	SpecialistFiche Specialist = "fiche"
)

type Timestamp = time.Time
