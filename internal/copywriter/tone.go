package copywriter

import "strings"

const neutralGuidance = "Keep a balanced, respectful voice; plain words, no hype and no slang"

var toneGuidance = map[string]string{
	"professional":  "Polished and courteous; precise wording, short sentences, no slang or exclamation marks",
	"friendly":      "Warm and approachable; write like a helpful peer, use contractions, stay on point",
	"casual":        "Relaxed and conversational; simple everyday words, light touch, still respectful",
	"confident":     "Assured and direct; state the value plainly, avoid hedging words like maybe or just",
	"authoritative": "Expert and decisive; lead with a clear point of view, be concise and specific",
	"empathetic":    "Understanding and considerate; acknowledge their situation before offering help",
	"enthusiastic":  "Upbeat and energetic without hype; show genuine interest, avoid exclamation marks",
	"witty":         "Lightly clever; one subtle turn of phrase at most, never at the reader's expense",
	"direct":        "Straight to the point; minimal preamble, one clear ask, no filler",
	"consultative":  "Advisory and curious; frame the offer around their goals and suggest one next step",
	"persuasive":    "Benefit-led and concrete; connect the offer to one outcome they care about",
}

// ToneGuidance returns writing guidance for a tone label. Unknown tones get neutral guidance.
func ToneGuidance(tone string) string {
	if g, ok := toneGuidance[strings.ToLower(strings.TrimSpace(tone))]; ok {
		return g
	}
	return neutralGuidance
}
