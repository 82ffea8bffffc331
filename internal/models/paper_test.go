package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaperGroupSetOverwrites(t *testing.T) {
	g := PaperGroup{}
	g.Set("01", KindQuestionPaper, "https://a/qp_01.pdf")
	g.Set("01", KindQuestionPaper, "https://b/qp_01.pdf")
	g.Set("01", KindMarkScheme, "https://a/ms_01.pdf")

	assert.Equal(t, "https://b/qp_01.pdf", g["01"][KindQuestionPaper])
	assert.Equal(t, 2, g.Count())
}

func TestPaperGroupVariantsLexicographic(t *testing.T) {
	g := PaperGroup{}
	for _, v := range []string{"10", "02", "2", "31"} {
		g.Set(v, KindQuestionPaper, "u")
	}
	assert.Equal(t, []string{"02", "10", "2", "31"}, g.Variants())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("QP")
	assert.True(t, ok)
	assert.Equal(t, KindQuestionPaper, k)

	_, ok = ParseKind("er")
	assert.False(t, ok)
}
