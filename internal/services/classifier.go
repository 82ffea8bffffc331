package services

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/paperscraper/internal/models"
)

// Match is the result of classifying a filename.
type Match struct {
	Variant string
	Kind    models.Kind
}

// Rule recognises one filename convention. Extract turns the submatches of Pattern
// into a Match and reports false when they do not make sense.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(m []string) (Match, bool)
}

// Classifier applies an ordered rule list. The first rule that matches wins.
type Classifier struct {
	Rules []Rule
}

// NewClassifier returns a classifier for the named rule set ("simple" or "caie").
func NewClassifier(ruleSet string) (*Classifier, error) {
	rules, err := RulesFor(ruleSet)
	if err != nil {
		return nil, err
	}
	return &Classifier{Rules: rules}, nil
}

// Classify maps a filename (or URL, only its basename is used) to a variant and kind.
func (c *Classifier) Classify(name string) (Match, bool) {
	base := path.Base(name)
	if !IsCandidate(base) {
		return Match{}, false
	}
	for _, r := range c.Rules {
		m := r.Pattern.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		if match, ok := r.Extract(m); ok {
			return match, true
		}
	}
	return Match{}, false
}

// IsCandidate reports whether name has an extension papers are published under.
func IsCandidate(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".zip")
}

// RulesFor returns the named rule set.
func RulesFor(name string) ([]Rule, error) {
	switch strings.ToLower(name) {
	case "", "simple":
		return SimpleRules(), nil
	case "caie":
		return CAIERules(), nil
	}
	return nil, fmt.Errorf("unknown rule set %q", name)
}

var (
	// qp_7.pdf, ms-12.pdf, qp03.pdf
	paperRule = regexp.MustCompile(`(?i)(qp|ms)[-_]?(\d{1,2})\.pdf$`)
	// sf_1.zip, sf-02.pdf
	supplementRule = regexp.MustCompile(`(?i)(sf)[-_]?(\d{1,2})\.(zip|pdf)$`)

	// 0478_w24_qp_11.pdf
	caieGenericRule = regexp.MustCompile(`(?i)\d{4}_[smw]\d{2}_(qp|ms|sf)_(\d)(\d)\.(pdf|zip)$`)
	// qp_11.pdf
	caieShortRule = regexp.MustCompile(`(?i)(qp|ms|sf)[-_](\d)(\d)\.(pdf|zip)$`)
	// 11_qp.pdf
	caieInvertedRule = regexp.MustCompile(`(?i)(\d)(\d)[-_](qp|ms|sf)\.(pdf|zip)$`)
)

// SimpleRules recognise files that already carry the variant number next to the kind.
func SimpleRules() []Rule {
	return []Rule{
		{Name: "paper", Pattern: paperRule, Extract: kindThenNumber},
		{Name: "supplement", Pattern: supplementRule, Extract: kindThenNumber},
	}
}

// CAIERules recognise Cambridge component codes (paper digit then sub-variant digit)
// and remap them onto a flat variant sequence.
func CAIERules() []Rule {
	return []Rule{
		{Name: "caie", Pattern: caieGenericRule, Extract: func(m []string) (Match, bool) {
			return caieMatch(m[1], m[2], m[3])
		}},
		{Name: "caie-short", Pattern: caieShortRule, Extract: func(m []string) (Match, bool) {
			return caieMatch(m[1], m[2], m[3])
		}},
		{Name: "caie-inverted", Pattern: caieInvertedRule, Extract: func(m []string) (Match, bool) {
			return caieMatch(m[3], m[1], m[2])
		}},
	}
}

func kindThenNumber(m []string) (Match, bool) {
	kind, ok := models.ParseKind(m[1])
	if !ok {
		return Match{}, false
	}
	return Match{Variant: PadVariant(m[2]), Kind: kind}, true
}

func caieMatch(kindToken, paper, sub string) (Match, bool) {
	kind, ok := models.ParseKind(kindToken)
	if !ok {
		return Match{}, false
	}
	return Match{Variant: CAIEVariant(paper, sub), Kind: kind}, true
}

// CAIEVariant maps a component (paper P, sub-variant V) to a variant code:
// paper 1 keeps V, paper 2 continues at V+3, anything else is P and V concatenated.
func CAIEVariant(paper, sub string) string {
	v, err := strconv.Atoi(sub)
	if err != nil {
		return PadVariant(paper + sub)
	}
	switch paper {
	case "1":
		return PadVariant(strconv.Itoa(v))
	case "2":
		return PadVariant(strconv.Itoa(v + 3))
	default:
		return PadVariant(paper + sub)
	}
}

// PadVariant left-pads a numeric variant to two characters.
func PadVariant(v string) string {
	if len(v) >= 2 {
		return v
	}
	return strings.Repeat("0", 2-len(v)) + v
}
