package gcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveScope only grants access to files this client creates.
const DriveScope = drive.DriveFileScope

const folderMimeType = "application/vnd.google-apps.folder"

// DriveStore publishes files through the Drive v3 API.
type DriveStore struct {
	svc *drive.Service
}

// NewDriveStore builds a Drive service authorised by ts. timeout bounds each HTTP call,
// uploads included.
func NewDriveStore(ctx context.Context, ts oauth2.TokenSource, timeout time.Duration) (*DriveStore, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source must be provided to create a drive client")
	}
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = timeout

	svc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return &DriveStore{svc: svc}, nil
}

// NewDriveStoreWithClient is used when the caller already owns an authorised *http.Client.
func NewDriveStoreWithClient(ctx context.Context, httpClient *http.Client, endpoint string) (*DriveStore, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return &DriveStore{svc: svc}, nil
}

// CreateFolder creates a folder named name under parentID and returns its ID.
func (d *DriveStore) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}
	created, err := d.svc.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	return created.Id, nil
}

// FindFolder looks up a non-trashed folder named name directly under parentID.
func (d *DriveStore) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(parentID), folderMimeType)
	list, err := d.svc.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("failed to search for folder %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

// UploadFile uploads localPath into parentID with the given content type and returns the file ID.
func (d *DriveStore) UploadFile(ctx context.Context, localPath, parentID, mimeType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:    filepath.Base(localPath),
		Parents: []string{parentID},
	}
	uploaded, err := d.svc.Files.Create(meta).
		Media(f, googleapi.ContentType(mimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(localPath), err)
	}
	return uploaded.Id, nil
}

// ShareFile grants anyone-with-the-link read access.
func (d *DriveStore) ShareFile(ctx context.Context, fileID string) error {
	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := d.svc.Permissions.Create(fileID, perm).Fields("id").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to share file %s: %w", fileID, err)
	}
	return nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
