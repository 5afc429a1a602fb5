//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain"
)

func validSingle() SingleRequest {
	return SingleRequest{
		RecipientName: "Sam",
		CompanyName:   "Acme",
		CompanyURL:    "Launched a new analytics product last week.",
		ValueProp:     "We cut onboarding time in half",
		CallToAction:  "Open to a quick chat?",
		Subject:       "Quick idea",
		FollowUpCount: 1,
		Tone:          "Friendly",
		Length:        "Short",
		SenderName:    "Dana",
		SenderTitle:   "AE",
		SenderCompany: "Widgets",
	}
}

func newSingle(s *fakeScraper, c *fakeCompletion, def copywriter.Sender) *singleUC {
	l := zerolog.Nop()
	return NewSingleUseCase(s, c, def, &l)
}

func TestSingle_GeneratesFromPastedContext(t *testing.T) {
	s := &fakeScraper{}
	c := &fakeCompletion{text: "Type: Initial | Subject: Re: analytics launch\n\nHi Sam,\n\nSaw the launch.\n\nType: Follow-up 1 | Subject:\n\nHi Sam,\n\nCircling back."}
	res, err := newSingle(s, c, copywriter.Sender{}).Generate(context.Background(), validSingle())
	require.NoError(t, err)

	assert.Empty(t, s.urls, "pasted context is not scraped")
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "Launched a new analytics product")
	assert.Contains(t, c.prompts[0], "Dana")
	assert.True(t, strings.HasPrefix(c.reqIDs[0], "single_"))

	assert.Equal(t, "analytics launch", res.Subject)
	assert.Equal(t, "Hi Sam,\n\nSaw the launch.", res.Email)
	require.Len(t, res.Emails, 2)
	assert.Equal(t, "Follow-up 1", res.Emails[1].Position.Label())
	assert.Equal(t, "Quick idea", res.Emails[1].Subject, "blank subject falls back to the fixed one")
	assert.Contains(t, res.Text, "Type: Initial | Subject: analytics launch\n\nHi Sam,")
	assert.Contains(t, res.Text, "Type: Follow-up 1 | Subject: Quick idea")
}

func TestSingle_ScrapesURLAndSurfacesFailure(t *testing.T) {
	s := &fakeScraper{err: &domain.ScrapeError{URL: "https://acme.io", Reason: "thin content"}}
	c := &fakeCompletion{text: "unused"}
	req := validSingle()
	req.CompanyURL = "acme.io"

	_, err := newSingle(s, c, copywriter.Sender{}).Generate(context.Background(), req)
	var se *domain.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"https://acme.io"}, s.urls)
	assert.Empty(t, c.prompts)
}

func TestSingle_ScrapedTextJoinsTypedContext(t *testing.T) {
	s := &fakeScraper{text: "Title: Acme\nPage Text: We build rockets."}
	c := &fakeCompletion{text: "Subject: hello\n\nHi Sam,\n\nBody."}
	req := validSingle()
	req.CompanyURL = "https://acme.io/news"
	req.ActivityText = "Hiring two SDRs"
	req.FollowUpCount = 0

	res, err := newSingle(s, c, copywriter.Sender{}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, c.prompts[0], "Hiring two SDRs\n\nTitle: Acme")
	assert.Equal(t, "hello", res.Subject)
	assert.Len(t, res.Emails, 1)
}

func TestSingle_Validation(t *testing.T) {
	cases := map[string]func(*SingleRequest){
		"recipient":     func(r *SingleRequest) { r.RecipientName = " " },
		"company":       func(r *SingleRequest) { r.CompanyName = "" },
		"cta":           func(r *SingleRequest) { r.CallToAction = "" },
		"tone":          func(r *SingleRequest) { r.Tone = "" },
		"sender":        func(r *SingleRequest) { r.SenderTitle = "" },
		"followups":     func(r *SingleRequest) { r.FollowUpCount = -1 },
		"custom length": func(r *SingleRequest) { r.Length, r.CustomLength = "Custom", "abc" },
		"no context":    func(r *SingleRequest) { r.CompanyURL, r.ActivityText = "", "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validSingle()
			mutate(&req)
			c := &fakeCompletion{text: "x"}
			_, err := newSingle(&fakeScraper{}, c, copywriter.Sender{}).Generate(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Empty(t, c.prompts)
		})
	}
}

func TestSingle_DefaultSender(t *testing.T) {
	c := &fakeCompletion{text: "Hi Sam,\n\nBody."}
	req := validSingle()
	req.SenderName, req.SenderTitle, req.SenderCompany = "", "", ""

	res, err := newSingle(&fakeScraper{}, c, copywriter.Sender{Name: "Lee", Title: "Founder", Company: "Ops Co"}).
		Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, c.prompts[0], "Lee")
	assert.Equal(t, "Quick idea", res.Subject)
}

func TestSingle_EmptyBodyAndCompletionErrors(t *testing.T) {
	c := &fakeCompletion{text: "Type: Initial | Subject: only a subject"}
	_, err := newSingle(&fakeScraper{}, c, copywriter.Sender{}).Generate(context.Background(), validSingle())
	assert.ErrorIs(t, err, domain.ErrEmptyCompletion)

	boom := &domain.CompletionError{RequestID: "single_x", Attempts: 4, Err: errors.New("down")}
	c = &fakeCompletion{err: boom}
	_, err = newSingle(&fakeScraper{}, c, copywriter.Sender{}).Generate(context.Background(), validSingle())
	var ce *domain.CompletionError
	assert.ErrorAs(t, err, &ce)
}

func TestSplitCompanyURL(t *testing.T) {
	cases := []struct{ in, url, pasted string }{
		{"acme.io", "https://acme.io", ""},
		{"http://acme.io/x", "http://acme.io/x", ""},
		{"they just raised a round.", "", "they just raised a round."},
		{"nodot", "", "nodot"},
		{"mailto:a@b.co", "", "mailto:a@b.co"},
		{"", "", ""},
	}
	for _, c := range cases {
		u, p := splitCompanyURL(c.in)
		assert.Equal(t, c.url, u, c.in)
		assert.Equal(t, c.pasted, p, c.in)
	}
}
