// Package pagination collects every post of the blog.
//
// Walker follows the next_page cursor chain through a feed.Controller, one
// page at a time, exactly as repeated "load more" clicks would:
//
//	ctrl := feed.NewController(first, client)
//	state, err := pagination.NewWalker(pagination.DefaultConfig()).Walk(ctx, ctrl)
//
// BatchFetcher uses Prismic's numbered pages instead. It fetches the first
// page to learn total_pages, then distributes the remaining pages over a
// worker pool:
//
//	fetcher := pagination.NewBatchFetcher(client, pagination.DefaultConfig())
//	posts, err := fetcher.FetchAll(ctx)
//
// Both return the posts collected so far together with the error when a
// page fails.
package pagination
