package gcp

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/paperscraper/internal/models"
)

// FirestoreManifestWriter stores each manifest record as a document keyed by its stable id.
type FirestoreManifestWriter struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreManifestWriter creates a Firestore client for projectID.
func NewFirestoreManifestWriter(ctx context.Context, projectID, collection string) (*FirestoreManifestWriter, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if collection == "" {
		collection = "papers"
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreManifestWriter{client: client, collection: collection}, nil
}

// Name implements services.ManifestSink.
func (w *FirestoreManifestWriter) Name() string { return "firestore" }

// WriteManifest upserts every record. Documents from earlier runs with other ids are left alone.
func (w *FirestoreManifestWriter) WriteManifest(ctx context.Context, name string, records []models.ManifestRecord) error {
	bw := w.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records))

	for _, rec := range records {
		doc := w.client.Collection(w.collection).Doc(rec.ID)
		job, err := bw.Set(doc, rec)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue document %s: %w", rec.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to write document %s: %w", records[i].ID, err)
		}
	}
	slog.Info("Manifest records written to Firestore.", "manifest", name, "collection", w.collection, "records", len(records))
	return nil
}

// Close releases the Firestore client.
func (w *FirestoreManifestWriter) Close() error {
	return w.client.Close()
}
