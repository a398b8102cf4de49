package govinfo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/openlegis/govharvest/internal/testutil"
	"github.com/openlegis/govharvest/pkg/client"
	"github.com/openlegis/govharvest/pkg/ratelimit"
)

func testSource(t *testing.T, baseURL string) *Source {
	t.Helper()
	limiter, err := ratelimit.NewBucket("govinfo-"+t.Name(), DefaultHourlyQuota, QuotaWindow)
	if err != nil {
		t.Fatalf("NewBucket() error = %v", err)
	}
	c, err := client.New(client.DefaultConfig(baseURL, "test-key", limiter))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	src, err := NewSource(c)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	return src
}

func TestCollectionJob_WalksListing(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	pkgs := testutil.MakePackages("BILLS", 25)
	summaries := make(map[string]string)
	for _, p := range pkgs {
		id := p["packageId"].(string)
		summaries[id] = `{"packageId":"` + id + `","title":"summary"}`
	}
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ServeCollection("BILLS", "2026-01-01T00:00:00Z", pkgs, summaries)

	src := testSource(t, mock.URL())
	job := src.CollectionJob("BILLS", since, 0)

	if job.SourceKey != "govinfo:BILLS" {
		t.Errorf("SourceKey = %q", job.SourceKey)
	}
	if job.InitialCursor.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", job.InitialCursor.PageSize, DefaultPageSize)
	}
	if job.FetchDetail == nil {
		t.Fatal("collection jobs must fetch package summaries")
	}

	page, err := job.FetchPage(context.Background(), job.InitialCursor)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Items) != 25 {
		t.Errorf("got %d items, want 25", len(page.Items))
	}
	if page.Next.HasMore {
		t.Error("single page under pageSize should be terminal")
	}

	id, err := job.ItemID(page.Items[0])
	if err != nil {
		t.Fatalf("ItemID() error = %v", err)
	}
	if id != "BILLS-118hr1000ih" {
		t.Errorf("ItemID = %q, want BILLS-118hr1000ih", id)
	}

	body, err := job.FetchDetail(context.Background(), id)
	if err != nil {
		t.Fatalf("FetchDetail() error = %v", err)
	}
	var summary struct {
		PackageID string `json:"packageId"`
	}
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("summary not JSON: %v", err)
	}
	if summary.PackageID != id {
		t.Errorf("summary packageId = %q, want %q", summary.PackageID, id)
	}
}

func TestCollectionJob_MissingSummaryIs404(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	pkgs := testutil.MakePackages("BILLS", 1)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ServeCollection("BILLS", "2026-01-01T00:00:00Z", pkgs, nil)

	src := testSource(t, mock.URL())
	job := src.CollectionJob("BILLS", since, 0)

	_, err := job.FetchDetail(context.Background(), "BILLS-118hr1000ih")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("FetchDetail() error = %v, want ErrNotFound match", err)
	}
}

func TestPackageID(t *testing.T) {
	got, err := packageID(json.RawMessage(`{"packageId":"BILLS-118hr3076ih","lastModified":"2026-01-02T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("packageID() error = %v", err)
	}
	if got != "BILLS-118hr3076ih" {
		t.Errorf("packageID() = %q", got)
	}

	if _, err := packageID(json.RawMessage(`{}`)); err == nil {
		t.Error("packageID() should fail without packageId")
	}
}

func TestNewSource_RequiresClient(t *testing.T) {
	if _, err := NewSource(nil); err == nil {
		t.Error("NewSource(nil) should fail")
	}
}
