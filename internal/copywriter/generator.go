// Package copywriter turns free-text model output into a well-formed email
// sequence: an initial email with exactly three paragraphs and exactly the
// requested number of follow-ups, with clean subjects and no signatures.
package copywriter

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/adapter"
)

// Request is everything needed to produce one prospect's sequence.
type Request struct {
	RequestID       string
	Prompt          string
	Settings        model.JobSettings
	FirstName       string
	Company         string
	ActivitySummary string
}

func (r Request) followUpCount() int {
	if r.Settings.FollowUpCount < 0 {
		return 0
	}
	return r.Settings.FollowUpCount
}

// Report describes what the generator had to do beyond the main completion.
type Report struct {
	ParseStrategy      string
	SubjectsFilled     int
	FollowUpsGenerated int
	FollowUpsRepaired  int
	RepairErrors       int
}

type Generator struct {
	client adapter.CompletionClient
	log    zerolog.Logger
}

func NewGenerator(client adapter.CompletionClient, logger *zerolog.Logger) *Generator {
	return &Generator{
		client: client,
		log:    logger.With().Str("component", "Generator").Logger(),
	}
}

// Generate runs the main completion and reconciles its output. Only an error
// from the main completion is returned; repair failures are recorded in the
// report and leave gaps.
func (g *Generator) Generate(ctx context.Context, req Request) (model.Sequence, Report, error) {
	var rep Report
	want := req.followUpCount()

	raw, err := g.client.Generate(ctx, req.Prompt, req.RequestID)
	if err != nil {
		return model.Sequence{}, rep, err
	}

	blocks, strategy := parseWithStrategy(raw, want)
	rep.ParseStrategy = strategy
	seq := sequenceFromBlocks(blocks, raw)
	if seq.Initial.Subject == "" {
		seq.Initial.Subject = NormalizeSubject(req.Settings.Subject)
	}

	if missingSubject(seq) {
		g.fillSubjects(ctx, req, &seq, &rep)
	}

	if len(seq.FollowUps) > want {
		seq.FollowUps = seq.FollowUps[:want]
	}
	if missing := want - len(seq.FollowUps); missing > 0 {
		start := len(seq.FollowUps) + 1
		gen, err := g.MissingFollowUps(ctx, req, seq.All(), start, missing)
		if err != nil {
			g.repairFailed(&rep, req.RequestID+"_missing_followups", err)
		}
		seq.FollowUps = append(seq.FollowUps, gen...)
		rep.FollowUpsGenerated += len(gen)
	}

	seq.FollowUps = g.RepairIncomplete(ctx, req, seq.Initial, seq.FollowUps, &rep)

	if missingSubject(seq) {
		g.fillSubjects(ctx, req, &seq, &rep)
	}

	shape(&seq, want)
	return seq, rep, nil
}

func (g *Generator) fillSubjects(ctx context.Context, req Request, seq *model.Sequence, rep *Report) {
	n, err := g.MissingSubjects(ctx, req, &seq.Initial, seq.FollowUps)
	if err != nil {
		g.repairFailed(rep, req.RequestID+"_subjects", err)
		return
	}
	rep.SubjectsFilled += n
}

func sequenceFromBlocks(blocks []Block, raw string) model.Sequence {
	if len(blocks) == 0 {
		return model.Sequence{Initial: model.Email{
			Position: model.InitialPosition(),
			Body:     CleanBody(strings.TrimSpace(raw)),
		}}
	}
	seq := model.Sequence{Initial: emailFromBlock(blocks[0], model.InitialPosition())}
	for i, b := range blocks[1:] {
		seq.FollowUps = append(seq.FollowUps, emailFromBlock(b, model.FollowUpPosition(i+1)))
	}
	return seq
}

func emailFromBlock(b Block, pos model.Position) model.Email {
	return model.Email{Position: pos, Subject: NormalizeSubject(b.Subject), Body: CleanBody(b.Body)}
}

func missingSubject(seq model.Sequence) bool {
	for _, e := range seq.All() {
		if strings.TrimSpace(e.Subject) == "" {
			return true
		}
	}
	return false
}

// shape applies the length decay, paragraph targets and the last subject
// normalization before a sequence is persisted.
func shape(seq *model.Sequence, want int) {
	for len(seq.FollowUps) < want {
		seq.FollowUps = append(seq.FollowUps, model.Email{Position: model.FollowUpPosition(len(seq.FollowUps) + 1)})
	}

	initialWords := CountWords(seq.Initial.Body)
	for i := range seq.FollowUps {
		fu := &seq.FollowUps[i]
		fu.Position = model.FollowUpPosition(i + 1)
		if initialWords > 0 {
			fu.Body = TrimToWordBudget(fu.Body, initialWords)
		}
		fu.Body = EnforceEmailParagraphs(CleanBody(fu.Body), FollowUpTargetParagraphs(i+1, want))
		fu.Subject = NormalizeSubject(fu.Subject)
	}

	seq.Initial.Position = model.InitialPosition()
	seq.Initial.Body = EnforceEmailParagraphs(CleanBody(seq.Initial.Body), InitialParagraphs)
	seq.Initial.Subject = NormalizeSubject(seq.Initial.Subject)
}
