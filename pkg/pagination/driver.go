package pagination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State of a pagination walk.
type State string

const (
	StateNotStarted State = "not_started"
	StatePaging     State = "paging"
	StateExhausted  State = "exhausted"
)

// Page is one upstream page: the extracted items plus the fully-formed
// cursor for the page after it (HasMore false when terminal).
type Page struct {
	Items []json.RawMessage
	Next  Cursor
}

// FetchFunc fetches a single page at the given cursor. Implementations own
// the transport, extraction and cursor derivation (see Cursor.AdvanceOffset
// and Cursor.AdvanceToken); the driver never touches the network.
type FetchFunc func(ctx context.Context, cur Cursor) (Page, error)

// Driver walks a paginated listing to completion. The walk is inherently
// sequential: each page's cursor is derived from the previous response.
type Driver struct {
	fetch  FetchFunc
	cursor Cursor
	state  State
	pages  int
	logger zerolog.Logger

	// retriedEmpty marks that an inconsistent empty-but-more page was
	// already retried once at the current cursor.
	retriedEmpty bool
}

// NewDriver creates a driver starting (or resuming) at initial. Resuming a
// cursor whose HasMore is already false yields an immediately exhausted
// driver.
func NewDriver(fetch FetchFunc, initial Cursor) (*Driver, error) {
	if fetch == nil {
		return nil, fmt.Errorf("pagination: fetch function is required")
	}
	if initial.PageSize <= 0 {
		return nil, fmt.Errorf("pagination: page size must be > 0 (got %d)", initial.PageSize)
	}

	d := &Driver{
		fetch:  fetch,
		cursor: initial,
		state:  StateNotStarted,
		logger: log.With().Str("component", "pagination").Logger(),
	}
	if !initial.HasMore {
		d.state = StateExhausted
	}
	return d, nil
}

// NextPage fetches the next page and advances the cursor. Once the driver is
// exhausted it returns an empty batch with no error.
func (d *Driver) NextPage(ctx context.Context) ([]json.RawMessage, error) {
	if d.state == StateExhausted {
		return nil, nil
	}
	d.state = StatePaging

	page, err := d.fetch(ctx, d.cursor)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	d.pages++

	if len(page.Items) == 0 && page.Next.HasMore {
		// Upstream inconsistency: empty page that claims more data.
		// Retry the same cursor once, then force exhaustion to avoid
		// looping forever.
		if d.retriedEmpty {
			d.logger.Warn().
				Int("page", d.pages).
				Msg("Empty page still claims more data after retry - treating listing as exhausted")
			d.cursor.HasMore = false
			d.state = StateExhausted
			return nil, nil
		}
		d.retriedEmpty = true
		d.logger.Warn().
			Int("page", d.pages).
			Msg("Empty page claims more data - retrying cursor once")
		return nil, nil
	}
	d.retriedEmpty = false

	d.cursor = page.Next
	if !page.Next.HasMore {
		d.state = StateExhausted
	}

	d.logger.Debug().
		Int("page", d.pages).
		Int("items", len(page.Items)).
		Bool("has_more", page.Next.HasMore).
		Msg("Page fetched")

	return page.Items, nil
}

// Cursor returns the current resumable position. Callers persist it after
// each page to survive interruptions.
func (d *Driver) Cursor() Cursor {
	return d.cursor
}

// State returns the walk state.
func (d *Driver) State() State {
	return d.state
}

// Exhausted reports whether the walk is complete.
func (d *Driver) Exhausted() bool {
	return d.state == StateExhausted
}

// Pages returns the number of pages fetched so far.
func (d *Driver) Pages() int {
	return d.pages
}
