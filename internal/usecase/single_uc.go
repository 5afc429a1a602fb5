// File: internal/usecase/single_uc.go
package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/infra/logging"
)

// Compile-time check
var _ SingleUseCase = (*singleUC)(nil)

// SingleRequest is one ad-hoc copy request. CompanyURL may hold either a URL
// or pasted context.
type SingleRequest struct {
	RecipientName   string `json:"recipientName"`
	RecipientRole   string `json:"recipientRole"`
	CompanyName     string `json:"companyName"`
	CompanyURL      string `json:"companyUrl"`
	ActivityText    string `json:"activityText"`
	ValueProp       string `json:"valueProp"`
	CallToAction    string `json:"callToAction"`
	Subject         string `json:"subject"`
	FollowUpCount   int    `json:"followUpCount"`
	FollowUpPrompts string `json:"followUpPrompts"`
	Tone            string `json:"tone"`
	Length          string `json:"length"`
	CustomLength    string `json:"customLength"`
	Instructions    string `json:"instructions"`
	SenderName      string `json:"senderName"`
	SenderTitle     string `json:"senderTitle"`
	SenderCompany   string `json:"senderCompany"`
}

type SingleResult struct {
	Subject string        `json:"subject"`
	Email   string        `json:"email"`
	Emails  []model.Email `json:"emails"`
	Text    string        `json:"text"`
}

type SingleUseCase interface {
	Generate(ctx context.Context, req SingleRequest) (*SingleResult, error)
}

type singleUC struct {
	scraper adapter.Scraper
	client  adapter.CompletionClient
	sender  copywriter.Sender
	log     *zerolog.Logger
}

// NewSingleUseCase wires the single copy flow. defaultSender fills sender
// fields a request leaves blank.
func NewSingleUseCase(scraper adapter.Scraper, client adapter.CompletionClient, defaultSender copywriter.Sender, logger *zerolog.Logger) *singleUC {
	compLog := logger.With().Str("component", "SingleUC").Logger()
	return &singleUC{scraper: scraper, client: client, sender: defaultSender, log: &compLog}
}

func (u *singleUC) Generate(ctx context.Context, req SingleRequest) (*SingleResult, error) {
	defer logging.TraceDuration(u.log, "SingleUC.Generate")()

	sender := copywriter.Sender{
		Name:    orDefault(req.SenderName, u.sender.Name),
		Title:   orDefault(req.SenderTitle, u.sender.Title),
		Company: orDefault(req.SenderCompany, u.sender.Company),
	}
	settings, err := singleSettings(req, sender)
	if err != nil {
		return nil, err
	}

	urlToScrape, pasted := splitCompanyURL(req.CompanyURL)
	typed := strings.TrimSpace(req.ActivityText)
	if typed == "" && pasted == "" && urlToScrape == "" {
		return nil, fmt.Errorf("%w: please add activity context (URL or pasted text)", domain.ErrInvalidArgument)
	}

	var scraped string
	if urlToScrape != "" {
		scraped, err = u.scraper.Scrape(ctx, urlToScrape)
		if err != nil {
			return nil, err
		}
	}
	summary := joinNonEmpty("\n\n", typed, pasted, strings.TrimSpace(scraped))
	if summary == "" {
		return nil, domain.ErrMissingActivityContext
	}

	prompt := copywriter.SinglePrompt(settings, copywriter.Recipient{
		FirstName: req.RecipientName,
		JobTitle:  req.RecipientRole,
		Company:   req.CompanyName,
	}, sender, summary)

	requestID := "single_" + strings.ToLower(ulid.Make().String())
	log := logging.With(logging.WithRequestID(ctx, requestID), u.log)
	log.Debug().Int("prompt_chars", len(prompt)).Msg("single copy prompt ready")

	raw, err := u.client.Generate(ctx, prompt, requestID)
	if err != nil {
		return nil, err
	}

	emails := singleEmails(raw, settings.FollowUpCount, settings.Subject)
	if len(emails) == 0 || strings.TrimSpace(emails[0].Body) == "" {
		return nil, domain.ErrEmptyCompletion
	}
	log.Info().Int("emails", len(emails)).Msg("single copy generated")

	return &SingleResult{
		Subject: emails[0].Subject,
		Email:   emails[0].Body,
		Emails:  emails,
		Text:    copywriter.FormatSequence(emails),
	}, nil
}

func singleSettings(req SingleRequest, sender copywriter.Sender) (model.JobSettings, error) {
	s := model.JobSettings{
		ValueProp:       strings.TrimSpace(req.ValueProp),
		CallToAction:    strings.TrimSpace(req.CallToAction),
		Subject:         strings.TrimSpace(req.Subject),
		FollowUpCount:   req.FollowUpCount,
		FollowUpPrompts: strings.TrimSpace(req.FollowUpPrompts),
		Tone:            strings.TrimSpace(req.Tone),
		Length:          strings.TrimSpace(req.Length),
		CustomLength:    strings.TrimSpace(req.CustomLength),
		Instructions:    strings.TrimSpace(req.Instructions),
	}
	switch {
	case blank(req.RecipientName):
		return s, fmt.Errorf("%w: recipient first name is required", domain.ErrInvalidArgument)
	case blank(req.CompanyName):
		return s, fmt.Errorf("%w: company name is required", domain.ErrInvalidArgument)
	case s.CallToAction == "":
		return s, fmt.Errorf("%w: call to action is required", domain.ErrInvalidArgument)
	case s.Tone == "":
		return s, fmt.Errorf("%w: tone is required", domain.ErrInvalidArgument)
	case blank(sender.Name) || blank(sender.Title) || blank(sender.Company):
		return s, fmt.Errorf("%w: sender name, title, and company are required", domain.ErrInvalidArgument)
	case s.FollowUpCount < 0:
		return s, fmt.Errorf("%w: follow-up count must be a number >= 0", domain.ErrInvalidArgument)
	case strings.EqualFold(s.Length, "custom") && !positiveNumber(s.CustomLength):
		return s, fmt.Errorf("%w: custom word count must be a positive number", domain.ErrInvalidArgument)
	}
	if s.FollowUpCount > model.MaxFollowUps {
		s.FollowUpCount = model.MaxFollowUps
	}
	return s, nil
}

// splitCompanyURL decides whether the field holds a URL to scrape or pasted
// context. Anything with whitespace or without a dot is context.
func splitCompanyURL(raw string) (target, pasted string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if !strings.ContainsFunc(raw, unicode.IsSpace) && strings.Contains(raw, ".") {
		if target = normalizeWebsite(raw); target != "" {
			return target, ""
		}
	}
	return "", raw
}

// singleEmails keeps the model's own labels and subjects; a missing subject
// falls back to the fixed subject from the request.
func singleEmails(raw string, followUps int, fixedSubject string) []model.Email {
	blocks := copywriter.ParseEmails(raw, followUps)
	if len(blocks) == 0 {
		body := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
		if body == "" {
			return nil
		}
		return []model.Email{{
			Position: model.InitialPosition(),
			Subject:  copywriter.NormalizeSubject(fixedSubject),
			Body:     body,
		}}
	}

	out := make([]model.Email, 0, len(blocks))
	for i, b := range blocks {
		pos, ok := model.ParsePosition(b.Label)
		if !ok {
			pos = model.InitialPosition()
			if i > 0 {
				pos = model.FollowUpPosition(i)
			}
		}
		subject := copywriter.NormalizeSubject(b.Subject)
		if subject == "" {
			subject = copywriter.NormalizeSubject(fixedSubject)
		}
		body := strings.TrimSpace(b.Body)
		if subject == "" && body == "" {
			continue
		}
		out = append(out, model.Email{Position: pos, Subject: subject, Body: body})
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return strings.TrimSpace(def)
}

func positiveNumber(s string) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && n > 0 && !math.IsInf(n, 0)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
