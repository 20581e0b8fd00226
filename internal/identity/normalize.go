package identity

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// honorifics lists name prefixes stripped during normalization.
var honorifics = []string{
	"MR ", "MRS ", "MS ", "DR ", "PROF ",
	"SR ", "SRA ", "LIC ", "ING ",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a person name for matching by:
//  1. Unicode NFC normalization
//  2. Trimming and uppercasing
//  3. Stripping punctuation
//  4. Removing honorific prefixes
//  5. Collapsing multiple spaces
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	// Punctuation goes first so "DR." and "DR" strip the same way.
	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	for _, h := range honorifics {
		if strings.HasPrefix(name, h) {
			name = strings.TrimPrefix(name, h)
			break
		}
	}

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// NormalizeIdentifier standardizes an identifier string for comparison:
// NFC, uppercase, and stripped of spaces, dashes, and dots. The canonical
// identifier stored on an identity keeps its original form; normalization
// is for matching only.
func NormalizeIdentifier(id string) string {
	id = norm.NFC.String(id)
	id = strings.ToUpper(strings.TrimSpace(id))
	return strings.NewReplacer(" ", "", "-", "", ".", "").Replace(id)
}

// TokenSetSimilarity returns the Jaccard similarity of the word sets of two
// normalized names, in [0,1].
func TokenSetSimilarity(a, b string) float64 {
	setA := tokenSet(NormalizeName(a))
	setB := tokenSet(NormalizeName(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}

	union := len(setA)
	for w := range setB {
		if !setA[w] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
