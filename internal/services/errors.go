package services

import (
	"errors"
	"fmt"
)

// ErrNoPapers is returned by the job when no configured source listed a single paper.
var ErrNoPapers = errors.New("no papers found")

// FetchError describes a failed listing or file fetch.
type FetchError struct {
	URL    string
	Status int
	// Challenge is set when the response looked like a bot-protection interstitial.
	Challenge bool
	Err       error
}

func (e *FetchError) Error() string {
	switch {
	case e.Challenge:
		return fmt.Sprintf("fetch %s: blocked by bot challenge (status %d)", e.URL, e.Status)
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError describes a failed remote folder, upload or share call.
type UploadError struct {
	Op   string
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
