//go:build !integration

package copywriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldmail-copywriter/internal/domain/model"
)

func TestParseEmails_LegacySubjectHeaders(t *testing.T) {
	t.Parallel()
	raw := "Subject: Hello Sarah\n\nHi Sarah,\nBody line one.\n\nSubject: Quick update\n\nHi Sarah,\nFollow-up line."
	blocks, strategy := parseWithStrategy(raw, 1)
	require.Len(t, blocks, 2)
	assert.Equal(t, "header", strategy)
	assert.Equal(t, "Hello Sarah", blocks[0].Subject)
	assert.Equal(t, "Hi Sarah,\nBody line one.", blocks[0].Body)
	assert.Equal(t, "Quick update", blocks[1].Subject)
	assert.Equal(t, "Hi Sarah,\nFollow-up line.", blocks[1].Body)
}

func TestParseEmails_TypedHeaders(t *testing.T) {
	t.Parallel()
	raw := "Type: Initial | Subject: A\n\nHi,\nX\n\nType: Follow-up 1 | Subject: B\n\nHi,\nY"
	blocks := ParseEmails(raw, 1)
	require.Len(t, blocks, 2)
	assert.Equal(t, Block{Label: "Initial", Subject: "A", Body: "Hi,\nX"}, blocks[0])
	assert.Equal(t, Block{Label: "Follow-up 1", Subject: "B", Body: "Hi,\nY"}, blocks[1])
}

func TestParseEmails_StandaloneTypeLine(t *testing.T) {
	t.Parallel()
	raw := "Subject: A\nType: Initial\n\nBody A\n\nSubject: B\nType: Follow-up 1\nBody B"
	blocks := ParseEmails(raw, 1)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Initial", blocks[0].Label)
	assert.Equal(t, "Body A", blocks[0].Body)
	assert.Equal(t, "Follow-up 1", blocks[1].Label)
}

func TestParseEmails_DropsEmptyBlocks(t *testing.T) {
	t.Parallel()
	blocks := ParseEmails("Subject:\n\nSubject: Real\n\nBody", 0)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Real", blocks[0].Subject)
	assert.Equal(t, "Body", blocks[0].Body)
}

func TestParseEmails_GreetingFallback(t *testing.T) {
	t.Parallel()
	raw := "Hi Tom,\nFirst email.\n\nHi Tom,\nSecond.\n\nHi Tom,\nThird."
	blocks, strategy := parseWithStrategy(raw, 1)
	assert.Equal(t, "greeting", strategy)
	require.Len(t, blocks, 2, "excess segments merge into the last one")
	assert.Equal(t, Block{Label: "Initial", Body: "Hi Tom,\nFirst email."}, blocks[0])
	assert.Equal(t, Block{Label: "Follow-up 1", Body: "Hi Tom,\nSecond.\n\nHi Tom,\nThird."}, blocks[1])
}

func TestParseEmails_SingleGreetingIsOneEmail(t *testing.T) {
	t.Parallel()
	raw := "Hi Tom,\nJust one email.\n\nNothing more."
	blocks, strategy := parseWithStrategy(raw, 2)
	assert.Equal(t, "header", strategy)
	require.Len(t, blocks, 1)
	assert.Equal(t, raw, blocks[0].Body)
}

func TestParseEmails_Empty(t *testing.T) {
	t.Parallel()
	blocks, strategy := parseWithStrategy(" \n ", 3)
	assert.Empty(t, blocks)
	assert.Equal(t, "raw", strategy)
}

func TestFormatForContext(t *testing.T) {
	t.Parallel()
	got := FormatForContext([]model.Email{
		{Position: model.InitialPosition(), Subject: "Hello", Body: "Body one"},
		{Position: model.FollowUpPosition(1), Body: "Body two "},
	})
	want := "Initial subject: Hello\nInitial body:\nBody one\n\nFollow-up 1 subject: (missing)\nFollow-up 1 body:\nBody two"
	assert.Equal(t, want, got)
}

func TestFormatSequence(t *testing.T) {
	t.Parallel()
	got := FormatSequence([]model.Email{
		{Position: model.InitialPosition(), Subject: "A", Body: "one"},
		{Position: model.FollowUpPosition(1), Subject: "B", Body: "two"},
	})
	assert.Equal(t, "Type: Initial | Subject: A\n\none\n\nType: Follow-up 1 | Subject: B\n\ntwo", got)
}
