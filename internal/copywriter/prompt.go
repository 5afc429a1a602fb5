package copywriter

import (
	"regexp"
	"strconv"
	"strings"

	"coldmail-copywriter/internal/domain/model"
)

var placeholderTokenRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Fill replaces every {key} in tmpl with values[key]. Tokens whose key is not
// in values are left as they are. Substituted text is not rescanned.
func Fill(tmpl string, values map[string]string) string {
	return placeholderTokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		if v, ok := values[tok[1:len(tok)-1]]; ok {
			return v
		}
		return tok
	})
}

// Recipient is the per-prospect part of a prompt.
type Recipient struct {
	FirstName string
	JobTitle  string
	Company   string
}

// Sender identifies who signs the single copy flow emails.
type Sender struct {
	Name    string
	Title   string
	Company string
}

func settingsValues(s model.JobSettings, r Recipient, activitySummary string) map[string]string {
	return map[string]string{
		"copy_length":             strconv.Itoa(s.TargetWords()),
		"tone_type":               strings.TrimSpace(s.Tone),
		"tone_guidance":           ToneGuidance(s.Tone),
		"follow_up_count":         strconv.Itoa(s.FollowUpCount),
		"follow_up_prompts":       strings.TrimSpace(s.FollowUpPrompts),
		"recipient_first_name":    strings.TrimSpace(r.FirstName),
		"recipient_job_title":     strings.TrimSpace(r.JobTitle),
		"recipient_company_name":  strings.TrimSpace(r.Company),
		"activity_summary":        strings.TrimSpace(activitySummary),
		"value_proposition":       strings.TrimSpace(s.ValueProp),
		"call_to_action":          strings.TrimSpace(s.CallToAction),
		"subject":                 strings.TrimSpace(s.Subject),
		"additional_instructions": strings.TrimSpace(s.Instructions),
	}
}

// BulkPrompt renders the bulk template for one prospect row.
func BulkPrompt(s model.JobSettings, r Recipient, activitySummary string) string {
	return Fill(bulkTemplate, settingsValues(s, r, activitySummary))
}

// SinglePrompt renders the single copy template, which also carries the sender identity.
func SinglePrompt(s model.JobSettings, r Recipient, sender Sender, activitySummary string) string {
	v := settingsValues(s, r, activitySummary)
	v["sender_name"] = strings.TrimSpace(sender.Name)
	v["sender_title"] = strings.TrimSpace(sender.Title)
	v["sender_company"] = strings.TrimSpace(sender.Company)
	return Fill(singleTemplate, v)
}
