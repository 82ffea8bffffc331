package services

import (
	"strings"

	"github.com/Lllllllleong/paperscraper/internal/models"
)

// ManifestBuilder turns published links into manifest records for one session.
type ManifestBuilder struct {
	Session  string
	SizeHint string
}

// Build returns one record per published numeric variant, in ascending lexicographic
// variant order. Variants absent from links were never published and are left out.
func (b ManifestBuilder) Build(group models.PaperGroup, links models.UploadedLinks) []models.ManifestRecord {
	records := make([]models.ManifestRecord, 0, len(links))
	for _, variant := range group.Variants() {
		if !isNumeric(variant) {
			continue
		}
		published, ok := links[variant]
		if !ok {
			continue
		}
		rec := models.ManifestRecord{
			Name:  b.Session + "-" + variant,
			Size:  b.SizeHint,
			QP:    published[models.KindQuestionPaper],
			MS:    published[models.KindMarkScheme],
			SF:    published[models.KindSupplementary],
			Text1: "QP",
			Text2: "MS",
			ID:    RecordID(b.Session, variant),
		}
		if rec.SF != "" {
			rec.Text3 = "SF"
		}
		records = append(records, rec)
	}
	return records
}

// RecordID is the lowercased session with spaces as underscores, then _<variant>.
func RecordID(session, variant string) string {
	return strings.ReplaceAll(strings.ToLower(session), " ", "_") + "_" + variant
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
