package copywriter

import (
	"context"
	"fmt"
	"strings"

	"coldmail-copywriter/internal/domain/model"
)

// Percent of the initial length targeted by follow-ups 1..4 in repair prompts.
var followUpLengthShares = []int{75, 60, 45, 35}

// MissingFollowUps asks for follow-ups start..start+count-1 with every
// previous email as context. Returned emails carry their true positions;
// blocks with neither subject nor body are dropped, so fewer than count may
// come back.
func (g *Generator) MissingFollowUps(ctx context.Context, req Request, previous []model.Email, start, count int) ([]model.Email, error) {
	id := fmt.Sprintf("%s_missing_followups_%d_%d", req.RequestID, start, start+count-1)
	return g.followUps(ctx, req, id, previous, start, count)
}

func (g *Generator) followUps(ctx context.Context, req Request, requestID string, previous []model.Email, start, count int) ([]model.Email, error) {
	if count <= 0 {
		return nil, nil
	}
	raw, err := g.client.Generate(ctx, followUpPrompt(req, previous, start, count), requestID)
	if err != nil {
		return nil, err
	}

	blocks := ParseEmails(raw, count)
	if len(blocks) == 0 && !isBlank(raw) {
		blocks = []Block{{Body: raw}}
	}
	out := make([]model.Email, 0, count)
	for _, b := range blocks {
		if len(out) == count {
			break
		}
		e := model.Email{
			Position: model.FollowUpPosition(start + len(out)),
			Subject:  NormalizeSubject(b.Subject),
			Body:     CleanBody(b.Body),
		}
		if e.Subject == "" && e.Body == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// RepairIncomplete regenerates, one at a time and in order, every follow-up
// slot whose subject or body is blank. A slot is replaced only when the new
// body is non-blank; failed calls leave the slot as it was.
func (g *Generator) RepairIncomplete(ctx context.Context, req Request, initial model.Email, followUps []model.Email, rep *Report) []model.Email {
	want := req.followUpCount()
	repaired := make([]model.Email, want)
	copy(repaired, followUps)

	for i := 0; i < want; i++ {
		if !repaired[i].Blank() {
			continue
		}
		previous := append([]model.Email{initial}, repaired[:i]...)
		id := fmt.Sprintf("%s_repair_followup_%d", req.RequestID, i+1)
		gen, err := g.followUps(ctx, req, id, previous, i+1, 1)
		if err != nil {
			g.repairFailed(rep, id, err)
			continue
		}
		if len(gen) == 0 || isBlank(gen[0].Body) {
			continue
		}
		repaired[i] = gen[0]
		rep.FollowUpsRepaired++
	}

	for i := range repaired {
		repaired[i].Position = model.FollowUpPosition(i + 1)
	}
	return repaired
}

// MissingSubjects fills blank subjects of initial and followUps with one
// completion call. Subjects the model already wrote are never replaced.
// It returns how many subjects were filled.
func (g *Generator) MissingSubjects(ctx context.Context, req Request, initial *model.Email, followUps []model.Email) (int, error) {
	raw, err := g.client.Generate(ctx, subjectsPrompt(req, *initial, followUps), req.RequestID+"_subjects")
	if err != nil {
		return 0, err
	}

	var lines []string
	for _, l := range strings.Split(normalizeNewlines(raw), "\n") {
		if s := NormalizeSubject(l); s != "" {
			lines = append(lines, s)
		}
	}

	filled := 0
	if initial.Subject == "" && len(lines) > 0 {
		initial.Subject = lines[0]
		filled++
	}
	for i := range followUps {
		if i+1 >= len(lines) {
			break
		}
		if followUps[i].Subject == "" {
			followUps[i].Subject = lines[i+1]
			filled++
		}
	}
	return filled, nil
}

func (g *Generator) repairFailed(rep *Report, requestID string, err error) {
	rep.RepairErrors++
	g.log.Warn().Err(err).Str("request_id", requestID).Msg("repair completion failed; keeping gap")
}

func followUpPrompt(req Request, previous []model.Email, start, count int) string {
	s := req.Settings
	tone := strings.TrimSpace(s.Tone)

	shares := make([]string, 0, len(followUpLengthShares))
	for i, p := range followUpLengthShares {
		shares = append(shares, fmt.Sprintf("follow-up %d about %d%%", i+1, p))
	}

	var b strings.Builder
	b.WriteString("You write B2B cold outreach emails.\n\n")
	fmt.Fprintf(&b, "Task: write follow-up emails %d through %d of an existing outreach sequence.\n", start, start+count-1)
	b.WriteString("Continue from the previous emails below and keep the thread consistent.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Tone: %s. Tone guidance: %s.\n", tone, ToneGuidance(tone))
	fmt.Fprintf(&b, "- Write exactly %d follow-up email(s) now. Do not repeat the initial email.\n", count)
	b.WriteString("- Each follow-up is shorter and slightly more direct than the email before it.\n")
	fmt.Fprintf(&b, "- Length: the initial is about %d words; %s.\n", s.TargetWords(), strings.Join(shares, ", "))
	b.WriteString("- Each follow-up brings one new insight or suggestion instead of repeating the offer.\n")
	b.WriteString("- One low-friction call to action and at most one question.\n")
	b.WriteString("- No signature, no sign-off such as Best or Regards, no separator lines.\n\n")
	b.WriteString("Recipient and context:\n")
	fmt.Fprintf(&b, "- First name: %s\n", strings.TrimSpace(req.FirstName))
	fmt.Fprintf(&b, "- Company: %s\n", strings.TrimSpace(req.Company))
	fmt.Fprintf(&b, "- Context (only source):\n%s\n\n", strings.TrimSpace(req.ActivitySummary))
	b.WriteString("Offer:\n")
	fmt.Fprintf(&b, "- Value proposition: %s\n", strings.TrimSpace(s.ValueProp))
	fmt.Fprintf(&b, "- Call to action: %s\n\n", strings.TrimSpace(s.CallToAction))
	b.WriteString("Previous emails (do not copy them):\n")
	b.WriteString(FormatForContext(previous))
	b.WriteString("\n\nOutput format:\n")
	b.WriteString("- Plain text only.\n")
	b.WriteString("- Start each follow-up with a line: Subject: <subject text>\n")
	b.WriteString("- Then one blank line, then the body.\n")
	b.WriteString("- One blank line between follow-ups.\n")
	return b.String()
}

func subjectsPrompt(req Request, initial model.Email, followUps []model.Email) string {
	tone := strings.TrimSpace(req.Settings.Tone)
	if tone == "" {
		tone = "neutral"
	}

	var b strings.Builder
	b.WriteString("You write B2B cold outreach emails.\n")
	b.WriteString("Write subject lines for an initial cold email and its follow-ups.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Return only the subject lines, one per line, without labels or numbering.\n")
	b.WriteString("- 1 to 8 words each, under 50 characters.\n")
	b.WriteString("- No question marks or exclamation points.\n")
	b.WriteString("- No generic subjects like \"Checking in\" or \"Following up\".\n")
	b.WriteString("- No reply or forward prefixes such as Re:, Fwd: or FW:.\n")
	b.WriteString("- Follow-up subjects continue from the previous email and name its new angle.\n")
	b.WriteString("- Never reuse the initial subject for a follow-up.\n")
	b.WriteString("- Mention the company or one concrete signal or benefit from the context.\n")
	fmt.Fprintf(&b, "- Tone: %s.\n\n", tone)
	fmt.Fprintf(&b, "Company: %s\n\n", strings.TrimSpace(req.Company))
	fmt.Fprintf(&b, "Context (only source):\n%s\n\n", strings.TrimSpace(req.ActivitySummary))
	fmt.Fprintf(&b, "Initial subject (may be blank): %s\n\n", strings.TrimSpace(initial.Subject))
	fmt.Fprintf(&b, "Initial email body:\n%s", strings.TrimSpace(initial.Body))

	for i := 0; i < req.followUpCount(); i++ {
		prev := "the initial email"
		if i > 0 {
			prev = model.FollowUpPosition(i).Label()
		}
		body := ""
		if i < len(followUps) {
			body = strings.TrimSpace(followUps[i].Body)
		}
		fmt.Fprintf(&b, "\n\nFollow-up %d builds on %s.\nFollow-up %d email body:\n%s", i+1, prev, i+1, body)
	}
	return b.String()
}
