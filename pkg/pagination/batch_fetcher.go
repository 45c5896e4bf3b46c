package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// PageFetcher fetches a numbered page and reports the total page count.
type PageFetcher interface {
	FetchPageNumber(ctx context.Context, pageNum int) (page feed.Page, totalPages int, err error)
}

// PageResult is the outcome of one page fetch.
type PageResult struct {
	PageNumber int
	Page       feed.Page
	Error      error
}

// BatchFetcher fetches all pages in parallel with a worker pool.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	return &BatchFetcher{
		fetcher: fetcher,
		config:  config.withDefaults(),
	}
}

// FetchAll returns the posts of every page in page order. If a page fails
// the posts of the pages fetched so far are returned with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context) ([]feed.Post, error) {
	start := time.Now()

	first, totalPages, err := bf.fetcher.FetchPageNumber(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	if bf.config.MaxPages > 0 && totalPages > bf.config.MaxPages {
		log.Warn().
			Int("total_pages", totalPages).
			Int("max_pages", bf.config.MaxPages).
			Msg("Limiting batch fetch to max pages")
		totalPages = bf.config.MaxPages
	}

	log.Info().
		Int("total_pages", totalPages).
		Int("workers", bf.config.MaxConcurrency).
		Msg("Starting parallel page fetch")

	results := map[int][]feed.Post{1: first.Items}
	if totalPages <= 1 {
		return collect(results), nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pageQueue := make(chan int, totalPages)
	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan PageResult, totalPages)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	fetchedPages := 1
	for result := range pageResults {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", result.PageNumber, result.Error)
				cancel()
			}
			continue
		}

		results[result.PageNumber] = result.Page.Items
		fetchedPages++

		if fetchedPages%bf.config.ProgressEvery == 0 {
			log.Info().
				Int("fetched", fetchedPages).
				Int("total", totalPages).
				Float64("progress_pct", float64(fetchedPages)/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Int("fetched_pages", fetchedPages).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return collect(results), fmt.Errorf("partial data (%d/%d pages): %w", fetchedPages, totalPages, firstErr)
	}

	log.Info().
		Int("pages", fetchedPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return collect(results), nil
}

// worker processes pages from the queue until it is drained or ctx is done.
func (bf *BatchFetcher) worker(ctx context.Context, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		page, _, err := bf.fetcher.FetchPageNumber(pageCtx, pageNum)
		cancel()

		// results is buffered for every page, so this never blocks.
		results <- PageResult{PageNumber: pageNum, Page: page, Error: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

// collect flattens results in page order.
func collect(results map[int][]feed.Post) []feed.Post {
	pages := make([]int, 0, len(results))
	total := 0
	for n, items := range results {
		pages = append(pages, n)
		total += len(items)
	}
	sort.Ints(pages)

	posts := make([]feed.Post, 0, total)
	for _, n := range pages {
		posts = append(posts, results[n]...)
	}
	return posts
}
