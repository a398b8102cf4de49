// Package congress builds ingestion jobs for api.congress.gov listings:
// bills, amendments and members. Listings paginate with offset/limit and
// carry a pagination.count, so walks terminate without a trailing probe
// page.
package congress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openlegis/govharvest/pkg/client"
	"github.com/openlegis/govharvest/pkg/ingest"
	"github.com/openlegis/govharvest/pkg/pagination"
)

// Defaults for api.congress.gov.
const (
	DefaultBaseURL = "https://api.congress.gov/v3"

	// DefaultPageSize is the API's maximum limit value.
	DefaultPageSize = 250

	// DefaultHourlyQuota is the documented per-key request quota.
	DefaultHourlyQuota = 5000

	// QuotaWindow is the quota's rolling window.
	QuotaWindow = time.Hour
)

// Source issues listing jobs against one Congress.gov client.
type Source struct {
	client *client.Client
	logger zerolog.Logger
}

// NewSource creates a Congress.gov source over an existing client. The
// client's rate limiter is shared by every job the source produces.
func NewSource(c *client.Client) (*Source, error) {
	if c == nil {
		return nil, fmt.Errorf("congress: client is required")
	}
	return &Source{
		client: c,
		logger: log.With().Str("component", "congress").Logger(),
	}, nil
}

// listEnvelope is the common shape of Congress.gov listing responses: the
// collection under a resource-specific key plus pagination metadata.
type listEnvelope struct {
	Pagination struct {
		Count int `json:"count"`
	} `json:"pagination"`
}

// fetchList returns a pagination.FetchFunc over path, extracting the
// collection stored under itemsKey.
func (s *Source) fetchList(path, itemsKey string) pagination.FetchFunc {
	return func(ctx context.Context, cur pagination.Cursor) (pagination.Page, error) {
		params := url.Values{
			"format": {"json"},
			"offset": {strconv.Itoa(cur.Offset)},
			"limit":  {strconv.Itoa(cur.PageSize)},
		}

		body, err := s.client.Get(ctx, path, params)
		if err != nil {
			return pagination.Page{}, err
		}

		var env listEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return pagination.Page{}, fmt.Errorf("decode %s envelope: %w", path, err)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return pagination.Page{}, fmt.Errorf("decode %s body: %w", path, err)
		}

		var page pagination.Page
		if raw, ok := fields[itemsKey]; ok {
			if err := json.Unmarshal(raw, &page.Items); err != nil {
				return pagination.Page{}, fmt.Errorf("decode %s items: %w", path, err)
			}
		}

		page.Next = cur.AdvanceOffsetTotal(len(page.Items), env.Pagination.Count)

		s.logger.Debug().
			Str("path", path).
			Int("offset", cur.Offset).
			Int("items", len(page.Items)).
			Int("total", env.Pagination.Count).
			Msg("Listing page fetched")

		return page, nil
	}
}

// BillsJob lists all bills of one congress, e.g. congress 118.
//
// A bill's resource ID is "<congress>-<type>-<number>", e.g. "118-hr-3076".
// The listing entries carry updateDate, so the listing item itself is the
// fingerprinted body; no per-bill detail request is spent.
func (s *Source) BillsJob(congressNum, priority int) ingest.Job {
	return ingest.Job{
		SourceKey:     fmt.Sprintf("congress:bill:%d", congressNum),
		InitialCursor: pagination.OffsetCursor(DefaultPageSize),
		FetchPage:     s.fetchList(fmt.Sprintf("/bill/%d", congressNum), "bills"),
		ItemID:        billID,
		Priority:      priority,
		Metadata:      fmt.Sprintf(`{"congress":%d,"kind":"bill"}`, congressNum),
	}
}

// AmendmentsJob lists all amendments of one congress.
func (s *Source) AmendmentsJob(congressNum, priority int) ingest.Job {
	return ingest.Job{
		SourceKey:     fmt.Sprintf("congress:amendment:%d", congressNum),
		InitialCursor: pagination.OffsetCursor(DefaultPageSize),
		FetchPage:     s.fetchList(fmt.Sprintf("/amendment/%d", congressNum), "amendments"),
		ItemID:        amendmentID,
		Priority:      priority,
		Metadata:      fmt.Sprintf(`{"congress":%d,"kind":"amendment"}`, congressNum),
	}
}

// MembersJob lists all current members of Congress, keyed by bioguide ID.
func (s *Source) MembersJob(priority int) ingest.Job {
	return ingest.Job{
		SourceKey:     "congress:member",
		InitialCursor: pagination.OffsetCursor(DefaultPageSize),
		FetchPage:     s.fetchList("/member", "members"),
		ItemID:        memberID,
		Priority:      priority,
		Metadata:      `{"kind":"member"}`,
	}
}

func billID(item json.RawMessage) (string, error) {
	var v struct {
		Congress int    `json:"congress"`
		Type     string `json:"type"`
		Number   string `json:"number"`
	}
	if err := json.Unmarshal(item, &v); err != nil {
		return "", fmt.Errorf("decode bill item: %w", err)
	}
	if v.Congress == 0 || v.Type == "" || v.Number == "" {
		return "", fmt.Errorf("bill item missing congress/type/number")
	}
	return fmt.Sprintf("%d-%s-%s", v.Congress, strings.ToLower(v.Type), v.Number), nil
}

func amendmentID(item json.RawMessage) (string, error) {
	var v struct {
		Congress int    `json:"congress"`
		Type     string `json:"type"`
		Number   string `json:"number"`
	}
	if err := json.Unmarshal(item, &v); err != nil {
		return "", fmt.Errorf("decode amendment item: %w", err)
	}
	if v.Congress == 0 || v.Type == "" || v.Number == "" {
		return "", fmt.Errorf("amendment item missing congress/type/number")
	}
	return fmt.Sprintf("%d-%s-%s", v.Congress, strings.ToLower(v.Type), v.Number), nil
}

func memberID(item json.RawMessage) (string, error) {
	var v struct {
		BioguideID string `json:"bioguideId"`
	}
	if err := json.Unmarshal(item, &v); err != nil {
		return "", fmt.Errorf("decode member item: %w", err)
	}
	if v.BioguideID == "" {
		return "", fmt.Errorf("member item missing bioguideId")
	}
	return v.BioguideID, nil
}
