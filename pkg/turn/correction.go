package turn

import (
	"regexp"
	"strings"
)

// correctionMarkers is the fixed set mandated by §9 / GLOSSARY:
// word-bounded, case-insensitive. Deviations are a product decision, not
// an implementation one, so this set is not configurable.
var correctionMarkers = []string{"actually", "wait", "sorry", "no"}

var correctionRe = buildCorrectionRegexp()

func buildCorrectionRegexp() *regexp.Regexp {
	parts := make([]string, len(correctionMarkers))
	for i, m := range correctionMarkers {
		parts[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(parts, "|") + `)\b`)
}

// HasCorrectionMarker reports whether text contains a correction marker,
// matched word-bounded and case-insensitively (§4.3, §9).
func HasCorrectionMarker(text string) bool {
	return correctionRe.MatchString(text)
}
