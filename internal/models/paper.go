package models

import (
	"sort"
	"strings"
)

// Kind identifies which artifact of a paper a file is.
type Kind string

const (
	KindQuestionPaper Kind = "qp"
	KindMarkScheme    Kind = "ms"
	KindSupplementary Kind = "sf"
)

// Kinds lists every artifact kind in the order they are downloaded and published.
var Kinds = []Kind{KindQuestionPaper, KindMarkScheme, KindSupplementary}

// ParseKind maps a lowercase or uppercase kind token to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(s)) {
	case KindQuestionPaper:
		return KindQuestionPaper, true
	case KindMarkScheme:
		return KindMarkScheme, true
	case KindSupplementary:
		return KindSupplementary, true
	}
	return "", false
}

// PaperGroup maps a two-character variant code to the source URL of each artifact found for it.
// A variant key is only present once at least one kind has resolved to a URL.
type PaperGroup map[string]map[Kind]string

// Set records url for (variant, kind), replacing any earlier URL.
func (g PaperGroup) Set(variant string, kind Kind, url string) {
	files, ok := g[variant]
	if !ok {
		files = make(map[Kind]string, len(Kinds))
		g[variant] = files
	}
	files[kind] = url
}

// Variants returns the variant codes in ascending lexicographic order.
func (g PaperGroup) Variants() []string {
	variants := make([]string, 0, len(g))
	for v := range g {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	return variants
}

// Count returns the number of (variant, kind) entries.
func (g PaperGroup) Count() int {
	n := 0
	for _, files := range g {
		n += len(files)
	}
	return n
}

// LocalArtifact is a downloaded file waiting to be published.
type LocalArtifact struct {
	Variant string
	Kind    Kind
	Path    string
}
