package models

import "time"

type EventType string

const (
	EventResumeUploaded   EventType = "resume.uploaded"
	EventResumeReanalyzed EventType = "resume.reanalyzed"
	EventResumeDeleted    EventType = "resume.deleted"
)

// ResumeEvent notifies downstream services that a resume's skills changed.
type ResumeEvent struct {
	Type     EventType        `json:"type"`
	ResumeID string           `json:"resume_id"`
	UserID   int64            `json:"user_id"`
	Skills   []ExtractedSkill `json:"skills,omitempty"`
	At       time.Time        `json:"at"`
}
