package models

import "encoding/json"

// ManifestRecord is one entry of the published metadata file, consumed by the app's paper list.
// Link fields are always present; a missing artifact is the empty string.
type ManifestRecord struct {
	Name  string `json:"name" firestore:"name"`
	Size  string `json:"size" firestore:"size"`
	QP    string `json:"qp" firestore:"qp"`
	MS    string `json:"ms" firestore:"ms"`
	SF    string `json:"sf" firestore:"sf"`
	Text1 string `json:"text1" firestore:"text1"`
	Text2 string `json:"text2" firestore:"text2"`
	Text3 string `json:"text3" firestore:"text3"`
	ID    string `json:"id" firestore:"id"`
}

// UploadedLinks holds the public URL recorded for each published artifact, keyed by variant.
// Every published variant carries an entry for every kind, empty when nothing was uploaded.
type UploadedLinks map[string]map[Kind]string

// MarshalManifest renders records as a 2-space indented JSON array. A nil slice renders as [].
func MarshalManifest(records []ManifestRecord) ([]byte, error) {
	if records == nil {
		records = []ManifestRecord{}
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
