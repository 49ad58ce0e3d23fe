package sparse

import "strings"

// stopWords are dropped during tokenization.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "about": true, "by": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "of": true,
	"from": true, "how": true, "what": true, "when": true, "where": true,
	"who": true, "which": true, "why": true, "can": true, "could": true,
	"will": true, "would": true, "shall": true, "should": true, "may": true,
	"might": true, "must": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "having": true, "i": true,
	"me": true, "my": true, "not": true,
}

// doorTerms are domain terms kept even when short or otherwise filtered.
// A query like "how to hang a door" must retain "hang" and "door".
var doorTerms = map[string]bool{
	"door": true, "doors": true, "installation": true, "install": true,
	"step": true, "steps": true, "procedure": true, "hardware": true,
	"tool": true, "tools": true, "component": true, "components": true,
	"hinge": true, "hinges": true, "frame": true, "jamb": true,
	"threshold": true, "knob": true, "handle": true, "lock": true,
	"strike": true, "plate": true, "gap": true, "level": true, "plumb": true,
	"square": true, "shim": true, "nail": true, "screw": true, "drill": true,
	"measurement": true, "width": true, "height": true, "opening": true,
	"rough": true, "interior": true, "exterior": true, "prehung": true,
	"bifold": true, "entry": true, "patio": true, "dentil": true,
	"shelf": true, "hang": true, "fit": true,
}

// Tokenize lowercases text, splits on non-alphanumeric runs, and drops
// stopwords. Door-domain terms always survive filtering.
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() == 0 {
			return
		}
		w := b.String()
		b.Reset()
		if doorTerms[w] || (!stopWords[w] && len(w) > 1) {
			tokens = append(tokens, w)
		}
	}

	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
