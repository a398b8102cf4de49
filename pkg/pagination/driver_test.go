package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// offsetFetcher simulates an offset-paginated upstream with n items.
func offsetFetcher(n int) FetchFunc {
	return func(ctx context.Context, cur Cursor) (Page, error) {
		var items []json.RawMessage
		for i := cur.Offset; i < n && i < cur.Offset+cur.PageSize; i++ {
			items = append(items, json.RawMessage(fmt.Sprintf(`{"id":%d}`, i)))
		}
		return Page{Items: items, Next: cur.AdvanceOffset(len(items))}, nil
	}
}

func TestDriver_Validation(t *testing.T) {
	if _, err := NewDriver(nil, OffsetCursor(10)); err == nil {
		t.Error("NewDriver(nil fetch) should fail")
	}
	if _, err := NewDriver(offsetFetcher(1), Cursor{Style: StyleOffset, HasMore: true}); err == nil {
		t.Error("NewDriver with zero page size should fail")
	}
}

func TestDriver_WalksFullSequenceInOrder(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		pageSize  int
		wantPages int
	}{
		{"multiple full pages plus remainder", 530, 250, 3},
		{"exact multiple needs trailing empty probe", 500, 250, 3},
		{"single short page", 7, 250, 1},
		{"single exact page needs trailing empty probe", 250, 250, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDriver(offsetFetcher(tt.items), OffsetCursor(tt.pageSize))
			if err != nil {
				t.Fatalf("NewDriver() error = %v", err)
			}

			var got []json.RawMessage
			calls := 0
			for !d.Exhausted() {
				items, err := d.NextPage(context.Background())
				if err != nil {
					t.Fatalf("NextPage() error = %v", err)
				}
				calls++
				got = append(got, items...)
				if calls > tt.items+2 {
					t.Fatal("driver did not terminate")
				}
			}

			if calls != tt.wantPages {
				t.Errorf("NextPage called %d times, want %d", calls, tt.wantPages)
			}
			if len(got) != tt.items {
				t.Errorf("yielded %d items, want %d", len(got), tt.items)
			}
			for i, raw := range got {
				var item struct {
					ID int `json:"id"`
				}
				if err := json.Unmarshal(raw, &item); err != nil {
					t.Fatalf("invalid item JSON: %v", err)
				}
				if item.ID != i {
					t.Fatalf("item %d out of order: got id %d", i, item.ID)
				}
			}
			if d.State() != StateExhausted {
				t.Errorf("State() = %v, want exhausted", d.State())
			}
			if d.Cursor().HasMore {
				t.Error("final cursor still has HasMore true")
			}
		})
	}
}

func TestDriver_ExhaustedIsTerminalNoOp(t *testing.T) {
	d, _ := NewDriver(offsetFetcher(3), OffsetCursor(10))
	if _, err := d.NextPage(context.Background()); err != nil {
		t.Fatalf("NextPage() error = %v", err)
	}
	if !d.Exhausted() {
		t.Fatal("driver should be exhausted after short page")
	}

	pages := d.Pages()
	items, err := d.NextPage(context.Background())
	if err != nil {
		t.Fatalf("NextPage() after exhaustion error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("exhausted NextPage yielded %d items, want 0", len(items))
	}
	if d.Pages() != pages {
		t.Error("exhausted NextPage still called the fetch function")
	}
}

func TestDriver_ResumeFromCursor(t *testing.T) {
	full, _ := NewDriver(offsetFetcher(30), OffsetCursor(10))
	if _, err := full.NextPage(context.Background()); err != nil {
		t.Fatalf("NextPage() error = %v", err)
	}
	saved := full.Cursor()
	if saved.Offset != 10 {
		t.Fatalf("saved cursor offset = %d, want 10", saved.Offset)
	}

	// Resume in a fresh driver; only the remaining 20 items appear.
	resumed, err := NewDriver(offsetFetcher(30), saved)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	var got int
	for !resumed.Exhausted() {
		items, err := resumed.NextPage(context.Background())
		if err != nil {
			t.Fatalf("NextPage() error = %v", err)
		}
		got += len(items)
	}
	if got != 20 {
		t.Errorf("resumed walk yielded %d items, want 20", got)
	}
}

func TestDriver_ResumeCompletedCursor(t *testing.T) {
	done := Cursor{Style: StyleOffset, Offset: 30, PageSize: 10, HasMore: false}
	d, err := NewDriver(offsetFetcher(30), done)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	if !d.Exhausted() {
		t.Error("driver resumed from completed cursor should start exhausted")
	}
}

func TestDriver_EmptyPageWithMoreRetriesOnceThenExhausts(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cur Cursor) (Page, error) {
		calls++
		next := cur
		next.HasMore = true // upstream keeps claiming more data
		return Page{Items: nil, Next: next}, nil
	}

	d, _ := NewDriver(fetch, OffsetCursor(10))
	for i := 0; i < 5 && !d.Exhausted(); i++ {
		if _, err := d.NextPage(context.Background()); err != nil {
			t.Fatalf("NextPage() error = %v", err)
		}
	}

	if !d.Exhausted() {
		t.Error("driver should exhaust after one retry of an inconsistent empty page")
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2 (original + single retry)", calls)
	}
}

func TestDriver_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("upstream 503")
	fetch := func(ctx context.Context, cur Cursor) (Page, error) {
		return Page{}, boom
	}

	d, _ := NewDriver(fetch, OffsetCursor(10))
	_, err := d.NextPage(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("NextPage() error = %v, want wrapped %v", err, boom)
	}
	// The walk is not exhausted; the caller may retry the same cursor.
	if d.Exhausted() {
		t.Error("fetch error must not exhaust the driver")
	}
}

func TestCursor_AdvanceToken(t *testing.T) {
	cur := TokenCursor("*", 100)
	next := cur.AdvanceToken("abc123")
	if !next.HasMore || next.Token != "abc123" {
		t.Errorf("AdvanceToken() = %+v, want token abc123 with more", next)
	}
	final := next.AdvanceToken("")
	if final.HasMore {
		t.Error("empty next token must be terminal")
	}
}

func TestCursor_AdvanceOffsetTotal(t *testing.T) {
	tests := []struct {
		name        string
		cur         Cursor
		itemCount   int
		total       int
		wantOffset  int
		wantHasMore bool
	}{
		{"mid listing", Cursor{Style: StyleOffset, Offset: 0, PageSize: 250, HasMore: true}, 250, 530, 250, true},
		{"last partial page", Cursor{Style: StyleOffset, Offset: 500, PageSize: 250, HasMore: true}, 30, 530, 530, false},
		{"exact multiple ends without probe", Cursor{Style: StyleOffset, Offset: 250, PageSize: 250, HasMore: true}, 250, 500, 500, false},
		{"empty page", Cursor{Style: StyleOffset, Offset: 0, PageSize: 250, HasMore: true}, 0, 530, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := tt.cur.AdvanceOffsetTotal(tt.itemCount, tt.total)
			if next.Offset != tt.wantOffset || next.HasMore != tt.wantHasMore {
				t.Errorf("AdvanceOffsetTotal() = {Offset:%d HasMore:%v}, want {Offset:%d HasMore:%v}",
					next.Offset, next.HasMore, tt.wantOffset, tt.wantHasMore)
			}
		})
	}
}
