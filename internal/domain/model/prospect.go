package model

import (
	"strconv"
	"strings"
	"time"
)

type ProspectStatus string

const (
	ProspectStatusQueued    ProspectStatus = "queued"
	ProspectStatusRunning   ProspectStatus = "running"
	ProspectStatusCompleted ProspectStatus = "completed"
	ProspectStatusFailed    ProspectStatus = "failed"
)

// Placeholder content for rows whose website could not be read and that carry no manual context.
const (
	ContextUnavailableSubject = "Context unavailable"
	ContextUnavailableBody    = "Not able to check personalized context."
)

// Prospect is one recipient row of an uploaded file.
type Prospect struct {
	ID              string
	JobID           string
	FileID          string
	RowIndex        int
	Status          ProspectStatus
	Error           string
	FirstName       string
	LastName        string
	Email           string
	Company         string
	Website         string
	ActivityContext string
	OriginalRow     map[string]string

	ScrapedContent string
	Subject        string
	EmailBody      string
	FollowUps      []Email

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the row reached a final state.
func (p *Prospect) Terminal() bool {
	return p.Status == ProspectStatusCompleted || p.Status == ProspectStatusFailed
}

// RequestID is the completion request ID used for this row.
func (p *Prospect) RequestID() string {
	return "job_" + p.JobID + "_row_" + strconv.Itoa(p.RowIndex)
}

// HasContext reports whether the row carries at least one personalization source.
func (p *Prospect) HasContext() bool {
	return strings.TrimSpace(p.Website) != "" || strings.TrimSpace(p.ActivityContext) != ""
}

// ProspectResult is what a finished row persists.
type ProspectResult struct {
	ScrapedContent string
	Sequence       Sequence
}

// DegradedSequence is stored when no personalization context could be obtained.
func DegradedSequence(followUps int) Sequence {
	seq := Sequence{Initial: Email{
		Position: InitialPosition(),
		Subject:  ContextUnavailableSubject,
		Body:     ContextUnavailableBody,
	}}
	for i := 1; i <= followUps; i++ {
		seq.FollowUps = append(seq.FollowUps, Email{
			Position: FollowUpPosition(i),
			Subject:  ContextUnavailableSubject,
			Body:     ContextUnavailableBody,
		})
	}
	return seq
}
