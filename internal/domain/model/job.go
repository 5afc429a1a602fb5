package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"coldmail-copywriter/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// MaxFollowUps caps the follow-up count accepted for a job.
const MaxFollowUps = 10

// Default word targets for the copy length vocabulary.
const (
	ShortCopyWords  = 65
	MediumCopyWords = 100
	LongCopyWords   = 150
)

// JobSettings are fixed for the life of a job and shared by all its rows.
type JobSettings struct {
	ValueProp       string `json:"valueProp"`
	CallToAction    string `json:"callToAction"`
	Subject         string `json:"subject"`
	FollowUpCount   int    `json:"followUpCount"`
	FollowUpPrompts string `json:"followUpPrompts"`
	Tone            string `json:"tone"`
	Length          string `json:"length"`
	CustomLength    string `json:"customLength"`
	Instructions    string `json:"instructions"`
}

// Validate trims every field, clamps the follow-up count and checks the required ones.
func (s *JobSettings) Validate() error {
	s.ValueProp = strings.TrimSpace(s.ValueProp)
	s.CallToAction = strings.TrimSpace(s.CallToAction)
	s.Subject = strings.TrimSpace(s.Subject)
	s.FollowUpPrompts = strings.TrimSpace(s.FollowUpPrompts)
	s.Tone = strings.TrimSpace(s.Tone)
	s.Length = strings.TrimSpace(s.Length)
	s.CustomLength = strings.TrimSpace(s.CustomLength)
	s.Instructions = strings.TrimSpace(s.Instructions)

	switch {
	case s.ValueProp == "":
		return fieldError("value proposition is required")
	case s.CallToAction == "":
		return fieldError("call to action is required")
	case s.Tone == "":
		return fieldError("tone is required")
	case s.Length == "":
		return fieldError("copy length is required")
	case s.FollowUpCount < 0:
		return fieldError("follow-up count must be a number >= 0")
	}
	if s.FollowUpCount > MaxFollowUps {
		s.FollowUpCount = MaxFollowUps
	}
	return nil
}

// TargetWords maps the length vocabulary to an approximate word count.
func (s JobSettings) TargetWords() int {
	return CopyLengthWords(s.Length, s.CustomLength)
}

// CopyLengthWords resolves "Short", "Medium (~100 words)", "Custom" and so on.
func CopyLengthWords(length, custom string) int {
	l := strings.TrimSpace(length)
	if strings.EqualFold(l, "custom") {
		n, err := strconv.ParseFloat(strings.TrimSpace(custom), 64)
		if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			return MediumCopyWords
		}
		return int(math.Round(n))
	}
	switch {
	case strings.HasPrefix(l, "Short"):
		return ShortCopyWords
	case strings.HasPrefix(l, "Medium"):
		return MediumCopyWords
	case strings.HasPrefix(l, "Long"):
		return LongCopyWords
	}
	return MediumCopyWords
}

type Job struct {
	ID            string
	FileID        string
	Settings      *JobSettings
	Status        JobStatus
	TotalRows     int
	ProcessedRows int
	ErrorCount    int
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Active reports whether rows of this job may still be advanced.
func (j *Job) Active() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusRunning
}

// Done reports whether every row has been processed.
func (j *Job) Done() bool {
	return j.TotalRows > 0 && j.ProcessedRows >= j.TotalRows
}

type settingsError struct{ msg string }

func (e *settingsError) Error() string { return e.msg }
func (e *settingsError) Unwrap() error { return domain.ErrInvalidArgument }

func fieldError(msg string) error { return &settingsError{msg: msg} }
