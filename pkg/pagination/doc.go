// Package pagination walks paginated upstream listings to completion.
//
// Government data APIs paginate in two styles: numeric offsets
// (api.congress.gov offset/limit, api.govinfo.gov offset/pageSize) and
// opaque continuation tokens. Cursor models both; Driver runs the walk as a
// small state machine (NotStarted -> Paging -> Exhausted) and exposes the
// current cursor after every page so a caller can checkpoint it.
//
// The driver is transport-agnostic: a caller-supplied FetchFunc performs the
// request and extracts items plus the next cursor from the raw response.
//
// Example usage:
//
//	fetch := func(ctx context.Context, cur pagination.Cursor) (pagination.Page, error) {
//		items, err := listBills(ctx, cur.Offset, cur.PageSize)
//		if err != nil {
//			return pagination.Page{}, err
//		}
//		return pagination.Page{Items: items, Next: cur.AdvanceOffset(len(items))}, nil
//	}
//
//	driver, _ := pagination.NewDriver(fetch, pagination.OffsetCursor(250))
//	for !driver.Exhausted() {
//		items, err := driver.NextPage(ctx)
//		...
//	}
//
// Page fetching stays sequential: each cursor depends on the previous page.
// Parallelism belongs to per-item processing (see pkg/workerpool).
package pagination
