// Package govinfo builds ingestion jobs for api.govinfo.gov collection
// listings. Collections paginate with offset/pageSize and report a total
// count; each listed package has a summary endpoint fetched as the detail
// body.
package govinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openlegis/govharvest/pkg/client"
	"github.com/openlegis/govharvest/pkg/ingest"
	"github.com/openlegis/govharvest/pkg/pagination"
)

// Defaults for api.govinfo.gov.
const (
	DefaultBaseURL = "https://api.govinfo.gov"

	// DefaultPageSize is the API's maximum pageSize value.
	DefaultPageSize = 1000

	// DefaultHourlyQuota is the documented per-key request quota.
	DefaultHourlyQuota = 1000

	// QuotaWindow is the quota's rolling window.
	QuotaWindow = time.Hour
)

// Source issues collection jobs against one GovInfo client.
type Source struct {
	client *client.Client
	logger zerolog.Logger
}

// NewSource creates a GovInfo source over an existing client.
func NewSource(c *client.Client) (*Source, error) {
	if c == nil {
		return nil, fmt.Errorf("govinfo: client is required")
	}
	return &Source{
		client: c,
		logger: log.With().Str("component", "govinfo").Logger(),
	}, nil
}

type collectionEnvelope struct {
	Count    int               `json:"count"`
	Packages []json.RawMessage `json:"packages"`
}

// fetchCollection walks /collections/{collection}/{since}: packages modified
// since the given time, oldest first.
func (s *Source) fetchCollection(collection string, since time.Time) pagination.FetchFunc {
	path := fmt.Sprintf("/collections/%s/%s", collection, since.UTC().Format("2006-01-02T15:04:05Z"))

	return func(ctx context.Context, cur pagination.Cursor) (pagination.Page, error) {
		params := url.Values{
			"offset":   {strconv.Itoa(cur.Offset)},
			"pageSize": {strconv.Itoa(cur.PageSize)},
		}

		var env collectionEnvelope
		if err := s.client.GetJSON(ctx, path, params, &env); err != nil {
			return pagination.Page{}, err
		}

		page := pagination.Page{Items: env.Packages}
		page.Next = cur.AdvanceOffsetTotal(len(env.Packages), env.Count)

		s.logger.Debug().
			Str("collection", collection).
			Int("offset", cur.Offset).
			Int("items", len(env.Packages)).
			Int("total", env.Count).
			Msg("Collection page fetched")

		return page, nil
	}
}

// fetchSummary fetches /packages/{packageId}/summary, the canonical detail
// body for a package.
func (s *Source) fetchSummary(ctx context.Context, packageID string) ([]byte, error) {
	return s.client.Get(ctx, fmt.Sprintf("/packages/%s/summary", packageID), nil)
}

// CollectionJob harvests every package of one collection (e.g. "BILLS",
// "FR", "CREC") modified since the given time. Package summaries are the
// ingested bodies, so each new or changed package costs one extra request.
func (s *Source) CollectionJob(collection string, since time.Time, priority int) ingest.Job {
	return ingest.Job{
		SourceKey:     fmt.Sprintf("govinfo:%s", collection),
		InitialCursor: pagination.OffsetCursor(DefaultPageSize),
		FetchPage:     s.fetchCollection(collection, since),
		ItemID:        packageID,
		FetchDetail:   s.fetchSummary,
		Priority:      priority,
		Metadata:      fmt.Sprintf(`{"collection":%q}`, collection),
	}
}

func packageID(item json.RawMessage) (string, error) {
	var v struct {
		PackageID string `json:"packageId"`
	}
	if err := json.Unmarshal(item, &v); err != nil {
		return "", fmt.Errorf("decode package item: %w", err)
	}
	if v.PackageID == "" {
		return "", fmt.Errorf("package item missing packageId")
	}
	return v.PackageID, nil
}
