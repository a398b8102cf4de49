package pagination

// Style selects how a listing advances between pages.
type Style string

const (
	// StyleOffset paginates with a numeric starting position and page size
	// (api.congress.gov offset/limit, api.govinfo.gov offset/pageSize).
	StyleOffset Style = "offset"

	// StyleToken paginates with an opaque server-issued continuation token.
	// Tokens are never parsed or computed on.
	StyleToken Style = "token"
)

// Cursor is the resumable position within a paginated listing. It is JSON
// serializable so callers can persist it (see pkg/checkpoint) and resume a
// walk after an interruption.
type Cursor struct {
	Style    Style  `json:"style"`
	Offset   int    `json:"offset,omitempty"`
	Token    string `json:"token,omitempty"`
	PageSize int    `json:"page_size"`

	// HasMore false is terminal: no further pages exist.
	HasMore bool `json:"has_more"`
}

// OffsetCursor returns a fresh offset-style cursor at position 0.
func OffsetCursor(pageSize int) Cursor {
	return Cursor{
		Style:    StyleOffset,
		Offset:   0,
		PageSize: pageSize,
		HasMore:  true,
	}
}

// TokenCursor returns a fresh token-style cursor. Sources differ in their
// initial sentinel ("*", empty string); it is passed through untouched.
func TokenCursor(initial string, pageSize int) Cursor {
	return Cursor{
		Style:    StyleToken,
		Token:    initial,
		PageSize: pageSize,
		HasMore:  true,
	}
}

// AdvanceOffset derives the cursor following a page that returned itemCount
// items. A short page means the listing is exhausted.
func (c Cursor) AdvanceOffset(itemCount int) Cursor {
	next := c
	next.Offset += itemCount
	next.HasMore = itemCount >= c.PageSize && itemCount > 0
	return next
}

// AdvanceOffsetTotal derives the next cursor when the response carries the
// listing's total item count (api.congress.gov pagination.count). Knowing
// the total avoids a trailing empty probe page on exact multiples.
func (c Cursor) AdvanceOffsetTotal(itemCount, total int) Cursor {
	next := c
	next.Offset += itemCount
	next.HasMore = itemCount > 0 && next.Offset < total
	return next
}

// AdvanceToken derives the cursor carrying the server-issued next token.
// An empty token is the terminal sentinel.
func (c Cursor) AdvanceToken(next string) Cursor {
	out := c
	out.Token = next
	out.HasMore = next != ""
	return out
}
