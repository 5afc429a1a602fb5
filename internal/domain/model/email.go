package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type EmailKind int

const (
	KindInitial EmailKind = iota
	KindFollowUp
)

// Position identifies an email inside a sequence. Index is 1-based for follow-ups
// and always 0 for the initial email.
type Position struct {
	Kind  EmailKind
	Index int
}

func InitialPosition() Position { return Position{Kind: KindInitial} }

func FollowUpPosition(i int) Position { return Position{Kind: KindFollowUp, Index: i} }

// Label is the display name used in prompts, exports and JSON.
func (p Position) Label() string {
	if p.Kind == KindInitial {
		return "Initial"
	}
	return fmt.Sprintf("Follow-up %d", p.Index)
}

// ParsePosition reads a label back. Unknown labels yield ok=false.
func ParsePosition(label string) (Position, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return Position{}, false
	}
	if l == "initial" || strings.HasPrefix(l, "initial ") {
		return InitialPosition(), true
	}
	l = strings.TrimPrefix(l, "follow-up")
	l = strings.TrimPrefix(l, "followup")
	l = strings.TrimPrefix(l, "follow up")
	n, err := strconv.Atoi(strings.TrimSpace(l))
	if err != nil || n <= 0 {
		return Position{}, false
	}
	return FollowUpPosition(n), true
}

// Email is one generated message of a sequence.
type Email struct {
	Position Position
	Subject  string
	Body     string
}

// Blank reports whether the subject or the body is missing.
func (e Email) Blank() bool {
	return strings.TrimSpace(e.Subject) == "" || strings.TrimSpace(e.Body) == ""
}

type emailJSON struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Email   string `json:"email"`
}

func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(emailJSON{Type: e.Position.Label(), Subject: e.Subject, Email: e.Body})
}

func (e *Email) UnmarshalJSON(b []byte) error {
	var raw emailJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if p, ok := ParsePosition(raw.Type); ok {
		e.Position = p
	}
	e.Subject = raw.Subject
	e.Body = raw.Email
	return nil
}

// Sequence is the full output for one prospect.
type Sequence struct {
	Initial   Email
	FollowUps []Email
}

// All returns the initial email followed by the follow-ups.
func (s Sequence) All() []Email {
	out := make([]Email, 0, len(s.FollowUps)+1)
	out = append(out, s.Initial)
	return append(out, s.FollowUps...)
}
