package video

import "context"

// Store persists video records keyed by video id.
type Store interface {
	// Get returns the video or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, id string) (Video, error)

	// Save inserts the video if no record with its id exists. It reports
	// whether a new row was written.
	Save(ctx context.Context, v Video) (bool, error)

	// SaveSummary updates the cached overview summary.
	SaveSummary(ctx context.Context, id, summary string) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the id and title of every video, oldest first.
	List(ctx context.Context) ([]Listing, error)
}
