//go:build !integration

package copywriter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldmail-copywriter/internal/domain/model"
)

// scriptedClient answers completions by request ID; unknown IDs fail.
type scriptedClient struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
	prompts   map[string]string
}

func newScripted(responses map[string]string) *scriptedClient {
	return &scriptedClient{responses: responses, prompts: map[string]string{}}
}

func (c *scriptedClient) Generate(_ context.Context, prompt, requestID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, requestID)
	c.prompts[requestID] = prompt
	if r, ok := c.responses[requestID]; ok {
		return r, nil
	}
	return "", fmt.Errorf("no scripted response for %s", requestID)
}

const reqID = "job_j1_row_2"

func newTestGenerator(c *scriptedClient) *Generator {
	l := zerolog.Nop()
	return NewGenerator(c, &l)
}

func request(followUps int) Request {
	s := testSettings()
	s.FollowUpCount = followUps
	return Request{
		RequestID:       reqID,
		Prompt:          "main prompt",
		Settings:        s,
		FirstName:       "Sarah",
		Company:         "Acme",
		ActivitySummary: "Acme is hiring three account executives.",
	}
}

const wellFormed = `Type: Initial | Subject: Re: Growth at Acme

Hi Sarah,
I noticed Acme is hiring three new account executives this quarter.

Ramping new reps usually means weeks of manual research before the first real call.

We build prospect briefs automatically so reps can start selling in days. Worth a quick chat next week?

Best,
Jane

Type: Follow-up 1 | Subject: Ramp time for new reps

Hi Sarah,
One idea: pair each new rep with a ready-made account list.

Would a short example help?

Type: Follow-up 2 | Subject: [EXTERNAL] Closing the loop on Acme

Hi Sarah,
The checklist I mentioned covers the first two weeks of onboarding. Is faster ramp-up still a priority this quarter?
---`

func TestGenerate_WellFormedOutputNeedsNoRepair(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{reqID: wellFormed})
	seq, rep, err := newTestGenerator(c).Generate(context.Background(), request(2))
	require.NoError(t, err)

	assert.Equal(t, []string{reqID}, c.calls)
	assert.Equal(t, "header", rep.ParseStrategy)

	assert.Equal(t, "Growth at Acme", seq.Initial.Subject)
	assert.Equal(t, "Hi Sarah,\n\n"+
		"I noticed Acme is hiring three new account executives this quarter.\n\n"+
		"Ramping new reps usually means weeks of manual research before the first real call.\n\n"+
		"We build prospect briefs automatically so reps can start selling in days. Worth a quick chat next week?",
		seq.Initial.Body)

	require.Len(t, seq.FollowUps, 2)
	assert.Equal(t, model.FollowUpPosition(1), seq.FollowUps[0].Position)
	assert.Equal(t, "Ramp time for new reps", seq.FollowUps[0].Subject)
	assert.Equal(t, "Closing the loop on Acme", seq.FollowUps[1].Subject)
	assert.Equal(t, "Hi Sarah,\n\n"+
		"The checklist I mentioned covers the first two weeks of onboarding.\n\n"+
		"Is faster ramp-up still a priority this quarter?",
		seq.FollowUps[1].Body)

	for _, e := range seq.All() {
		assert.False(t, EndsWithSignature(e.Body), "signature leaked into %s", e.Position.Label())
	}
}

func TestGenerate_SynthesizesMissingFollowUps(t *testing.T) {
	t.Parallel()
	missingID := reqID + "_missing_followups_3_3"
	c := newScripted(map[string]string{
		reqID:     wellFormed,
		missingID: "Subject: Last note for Acme\n\nHi Sarah,\nShould I close the file on this for now?",
	})
	seq, rep, err := newTestGenerator(c).Generate(context.Background(), request(3))
	require.NoError(t, err)

	assert.Equal(t, []string{reqID, missingID}, c.calls)
	assert.Equal(t, 1, rep.FollowUpsGenerated)
	require.Len(t, seq.FollowUps, 3)
	assert.Equal(t, model.FollowUpPosition(3), seq.FollowUps[2].Position)
	assert.Equal(t, "Last note for Acme", seq.FollowUps[2].Subject)
	assert.Equal(t, "Hi Sarah,\n\nShould I close the file on this for now?", seq.FollowUps[2].Body)

	prompt := c.prompts[missingID]
	assert.Contains(t, prompt, "follow-up emails 3 through 3")
	assert.Contains(t, prompt, "Follow-up 2 subject: Closing the loop on Acme")
	assert.Contains(t, prompt, "Initial subject: Growth at Acme")
}

func TestGenerate_TruncatesExtraFollowUps(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{reqID: wellFormed})
	seq, _, err := newTestGenerator(c).Generate(context.Background(), request(1))
	require.NoError(t, err)
	require.Len(t, seq.FollowUps, 1)
	assert.Equal(t, "Ramp time for new reps", seq.FollowUps[0].Subject)
}

func TestGenerate_FillsMissingSubjects(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{
		reqID:               "Hi Sarah,\nFirst body sentence is here.\n\nHi Sarah,\nSecond body.",
		reqID + "_subjects": "1. Acme hiring push\n\nRe: Ramp faster at Acme\nExtra line",
	})
	seq, rep, err := newTestGenerator(c).Generate(context.Background(), request(1))
	require.NoError(t, err)

	assert.Equal(t, "greeting", rep.ParseStrategy)
	assert.Equal(t, 2, rep.SubjectsFilled)
	assert.Equal(t, "Acme hiring push", seq.Initial.Subject)
	require.Len(t, seq.FollowUps, 1)
	assert.Equal(t, "Ramp faster at Acme", seq.FollowUps[0].Subject)
	assert.Equal(t, []string{reqID, reqID + "_subjects"}, c.calls)
}

func TestGenerate_SubjectsNeverOverwritten(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{
		reqID:               "Subject: Kept subject\n\nHi Sarah,\nBody one.\n\nSubject:\n\nHi Sarah,\nBody two.",
		reqID + "_subjects": "Replacement one\nFilled second",
	})
	seq, rep, err := newTestGenerator(c).Generate(context.Background(), request(1))
	require.NoError(t, err)
	assert.Equal(t, "Kept subject", seq.Initial.Subject)
	assert.Equal(t, "Filled second", seq.FollowUps[0].Subject)
	assert.Equal(t, 1, rep.SubjectsFilled)
}

func TestGenerate_FixedSubjectFallback(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{reqID: "Hi Sarah,\nBody."})
	req := request(0)
	req.Settings.Subject = "Fwd: Idea for Acme"
	seq, _, err := newTestGenerator(c).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Idea for Acme", seq.Initial.Subject)
	assert.Empty(t, seq.FollowUps)
	assert.Equal(t, []string{reqID}, c.calls)
}

func TestGenerate_RepairsIncompleteFollowUp(t *testing.T) {
	t.Parallel()
	repairID := reqID + "_repair_followup_1"
	main := "Type: Initial | Subject: Hello Acme\n\nHi Sarah,\nIntro.\n\n" +
		"Type: Follow-up 1 | Subject: Empty one\n\n" +
		"Type: Follow-up 2 | Subject: Second\n\nHi Sarah,\nStill there?"
	c := newScripted(map[string]string{
		reqID:    main,
		repairID: "Subject: Better idea\n\nHi Sarah,\nHere is a better idea for your team.",
	})
	seq, rep, err := newTestGenerator(c).Generate(context.Background(), request(2))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.FollowUpsRepaired)
	assert.Equal(t, "Better idea", seq.FollowUps[0].Subject)
	assert.Equal(t, "Hi Sarah,\n\nHere is a better idea for your team.", seq.FollowUps[0].Body)
	assert.Contains(t, c.prompts[repairID], "Initial subject: Hello Acme")
	assert.NotContains(t, c.prompts[repairID], "Follow-up 2 subject")
}

func TestGenerate_RepairFailuresLeaveGaps(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{reqID: "Subject: Only the initial\n\nHi Sarah,\nIntro."})
	seq, rep, err := newTestGenerator(c).Generate(context.Background(), request(2))
	require.NoError(t, err, "repair errors are never fatal")

	require.Len(t, seq.FollowUps, 2)
	for i, fu := range seq.FollowUps {
		assert.Equal(t, model.FollowUpPosition(i+1), fu.Position)
		assert.True(t, fu.Blank())
	}
	// missing follow-ups, two slot repairs, subjects
	assert.Equal(t, 4, rep.RepairErrors)
	assert.Equal(t, []string{
		reqID,
		reqID + "_missing_followups_1_2",
		reqID + "_repair_followup_1",
		reqID + "_repair_followup_2",
		reqID + "_subjects",
	}, c.calls)
}

func TestGenerate_MainCompletionErrorIsFatal(t *testing.T) {
	t.Parallel()
	c := newScripted(nil)
	_, _, err := newTestGenerator(c).Generate(context.Background(), request(1))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), reqID))
	assert.Len(t, c.calls, 1)
}

func TestGenerate_FollowUpsShorterThanInitial(t *testing.T) {
	t.Parallel()
	main := "Subject: Hi Acme\n\nHi Sarah,\nShort intro here.\n\n" +
		"Subject: Longer\n\nHi Sarah,\nFirst paragraph of the follow-up.\n\nSecond paragraph with more words here."
	c := newScripted(map[string]string{reqID: main})
	seq, _, err := newTestGenerator(c).Generate(context.Background(), request(1))
	require.NoError(t, err)
	assert.Equal(t, "Hi Sarah,\n\nFirst paragraph of the follow-up.", seq.FollowUps[0].Body)
}

func TestGenerate_RawTextFallback(t *testing.T) {
	t.Parallel()
	c := newScripted(map[string]string{reqID: "Acme is growing fast this year. We can help your new reps ramp in days."})
	req := request(0)
	req.Settings.Subject = "Ramp at Acme"
	seq, _, err := newTestGenerator(c).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Acme is growing fast this year.\n\nWe can help your new reps ramp in days.", seq.Initial.Body)
}
