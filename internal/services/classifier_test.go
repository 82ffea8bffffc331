package services

import (
	"testing"

	"github.com/Lllllllleong/paperscraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRules(t *testing.T) {
	c := &Classifier{Rules: SimpleRules()}

	tests := []struct {
		name    string
		want    Match
		matched bool
	}{
		{name: "qp_7.pdf", want: Match{Variant: "07", Kind: models.KindQuestionPaper}, matched: true},
		{name: "qp-12.pdf", want: Match{Variant: "12", Kind: models.KindQuestionPaper}, matched: true},
		{name: "0478_s24_ms_21.pdf", want: Match{Variant: "21", Kind: models.KindMarkScheme}, matched: true},
		{name: "MS03.PDF", want: Match{Variant: "03", Kind: models.KindMarkScheme}, matched: true},
		{name: "sf_1.zip", want: Match{Variant: "01", Kind: models.KindSupplementary}, matched: true},
		{name: "sf-04.pdf", want: Match{Variant: "04", Kind: models.KindSupplementary}, matched: true},
		{name: "https://pastpapers.co/cie/IGCSE/qp_2.pdf", want: Match{Variant: "02", Kind: models.KindQuestionPaper}, matched: true},
		{name: "qp_123.pdf"},
		{name: "qp_1.zip"},
		{name: "random.txt"},
		{name: "er.pdf"},
		{name: "gt.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(tt.name)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCAIERules(t *testing.T) {
	c := &Classifier{Rules: CAIERules()}

	tests := []struct {
		name    string
		want    Match
		matched bool
	}{
		{name: "0478_w24_qp_11.pdf", want: Match{Variant: "01", Kind: models.KindQuestionPaper}, matched: true},
		{name: "0478_w24_qp_13.pdf", want: Match{Variant: "03", Kind: models.KindQuestionPaper}, matched: true},
		{name: "0478_w24_qp_22.pdf", want: Match{Variant: "05", Kind: models.KindQuestionPaper}, matched: true},
		{name: "0478_m24_ms_21.pdf", want: Match{Variant: "04", Kind: models.KindMarkScheme}, matched: true},
		{name: "0478_s24_sf_31.zip", want: Match{Variant: "31", Kind: models.KindSupplementary}, matched: true},
		{name: "ms-12.pdf", want: Match{Variant: "02", Kind: models.KindMarkScheme}, matched: true},
		{name: "23_qp.pdf", want: Match{Variant: "06", Kind: models.KindQuestionPaper}, matched: true},
		{name: "0478_w24_gt.pdf"},
		{name: "0478_w24_qp_1.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(tt.name)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifiedVariantsAreAlwaysPadded(t *testing.T) {
	simple := &Classifier{Rules: SimpleRules()}
	caie := &Classifier{Rules: CAIERules()}

	names := []string{"qp_1.pdf", "ms_9.pdf", "sf_3.zip", "qp_10.pdf"}
	for _, name := range names {
		m, ok := simple.Classify(name)
		require.True(t, ok, name)
		assert.Len(t, m.Variant, 2, name)
	}
	for _, name := range []string{"0478_s24_qp_11.pdf", "0478_s24_qp_21.pdf", "0478_s24_qp_41.pdf"} {
		m, ok := caie.Classify(name)
		require.True(t, ok, name)
		assert.Len(t, m.Variant, 2, name)
	}
}

func TestCAIEVariant(t *testing.T) {
	tests := []struct {
		paper, sub, want string
	}{
		{"1", "1", "01"},
		{"1", "3", "03"},
		{"2", "1", "04"},
		{"2", "3", "06"},
		{"3", "2", "32"},
		{"4", "1", "41"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CAIEVariant(tt.paper, tt.sub), "%s%s", tt.paper, tt.sub)
	}
}

func TestRulesFor(t *testing.T) {
	rules, err := RulesFor("simple")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	rules, err = RulesFor("CAIE")
	require.NoError(t, err)
	assert.Equal(t, "caie", rules[0].Name)

	_, err = RulesFor("fuzzy")
	assert.Error(t, err)
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, IsCandidate("qp_01.pdf"))
	assert.True(t, IsCandidate("SF_01.ZIP"))
	assert.False(t, IsCandidate("random.txt"))
	assert.False(t, IsCandidate("qp_01.pdf.html"))
}
