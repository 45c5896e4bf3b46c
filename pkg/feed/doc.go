// Package feed holds the in-memory list of fetched post summaries and the
// cursor to the next page.
//
// The pure operations (Initialize, HasMore, AppendPage) define the merge
// contract: pages are appended in arrival order and the cursor is replaced by
// the cursor of the last page received. Controller wraps a State with a single
// mutation path and an in-flight flag so that overlapping "load more"
// triggers are rejected instead of racing.
//
// Example usage:
//
//	first, err := cms.FirstPage(ctx)
//	if err != nil {
//		return err
//	}
//	ctrl := feed.NewController(first, cms)
//	for ctrl.HasMore() {
//		if _, err := ctrl.LoadMore(ctx); err != nil {
//			return err
//		}
//	}
//
// The controller never deduplicates unless WithDedup(true) is given; the
// data source is trusted not to re-deliver an ID on a later page.
package feed
