package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var titleCaser = cases.Title(language.English)

// Name canonicalizes a participant name: fullwidth characters (common in
// feeds mirrored through East Asian providers) are folded to halfwidth,
// whitespace is collapsed, and the result is title-cased. This plays the
// same canonicalization role as the teacher's normalizeTrackName, made
// Unicode-correct rather than ASCII-only.
func Name(raw string) string {
	folded := width.Fold.String(raw)
	trimmed := strings.Join(strings.Fields(folded), " ")
	if trimmed == "" {
		return ""
	}
	return titleCaser.String(trimmed)
}
