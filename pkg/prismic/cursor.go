package prismic

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// Compile-time check that the client is a feed data source.
var _ feed.DataSource = (*Client)(nil)

// FirstPage fetches the first page of the configured document type.
func (c *Client) FirstPage(ctx context.Context) (feed.Page, error) {
	resp, err := c.Query(ctx, c.listQuery(1))
	if err != nil {
		return feed.Page{}, fmt.Errorf("fetch first page: %w", err)
	}
	return resp.ToPage()
}

// FetchPage fetches the page a next_page cursor points at.
func (c *Client) FetchPage(ctx context.Context, cursor string) (feed.Page, error) {
	u, err := c.ValidateCursor(cursor)
	if err != nil {
		return feed.Page{}, err
	}

	resp, err := c.search(ctx, u)
	if err != nil {
		return feed.Page{}, fmt.Errorf("fetch page: %w", err)
	}
	return resp.ToPage()
}

// ValidateCursor parses cursor and checks that it is a search URL of the
// configured repository. Anything else returns ErrForeignCursor.
func (c *Client) ValidateCursor(cursor string) (*url.URL, error) {
	if cursor == "" {
		return nil, fmt.Errorf("%w: empty cursor", ErrForeignCursor)
	}

	u, err := url.Parse(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForeignCursor, err)
	}

	search := c.searchURL()
	if !strings.EqualFold(u.Scheme, search.Scheme) || !strings.EqualFold(u.Host, search.Host) {
		return nil, fmt.Errorf("%w: host %q", ErrForeignCursor, u.Host)
	}
	if u.Path != search.Path {
		return nil, fmt.Errorf("%w: path %q", ErrForeignCursor, u.Path)
	}
	if u.User != nil || u.Query().Get("ref") == "" {
		return nil, fmt.Errorf("%w: missing ref", ErrForeignCursor)
	}
	return u, nil
}

// FetchPageNumber fetches page pageNum of the configured document type and
// reports the total number of pages. The master ref is resolved on every
// call; use PinMasterRef when fetching many pages.
func (c *Client) FetchPageNumber(ctx context.Context, pageNum int) (feed.Page, int, error) {
	return c.fetchPageNumber(ctx, "", pageNum)
}

// RefPager fetches numbered pages of a single content ref.
type RefPager struct {
	client *Client
	ref    string
}

// PinMasterRef resolves the master ref once. Every page fetched through the
// returned pager reads that ref, so a release published mid-fetch cannot mix
// two versions of the list.
func (c *Client) PinMasterRef(ctx context.Context) (*RefPager, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return nil, err
	}
	return &RefPager{client: c, ref: ref}, nil
}

// Ref returns the pinned ref.
func (p *RefPager) Ref() string {
	return p.ref
}

// FetchPageNumber fetches page pageNum at the pinned ref.
func (p *RefPager) FetchPageNumber(ctx context.Context, pageNum int) (feed.Page, int, error) {
	return p.client.fetchPageNumber(ctx, p.ref, pageNum)
}

func (c *Client) fetchPageNumber(ctx context.Context, ref string, pageNum int) (feed.Page, int, error) {
	q := c.listQuery(pageNum)
	q.Ref = ref
	resp, err := c.Query(ctx, q)
	if err != nil {
		return feed.Page{}, 0, fmt.Errorf("fetch page %d: %w", pageNum, err)
	}
	page, err := resp.ToPage()
	if err != nil {
		return feed.Page{}, 0, err
	}
	return page, resp.TotalPages, nil
}

// listQuery is the query listing the configured document type.
func (c *Client) listQuery(pageNum int) Query {
	fetch := c.config.Fetch
	if len(fetch) == 0 {
		t := c.config.DocumentType
		fetch = []string{t + ".title", t + ".subtitle", t + ".author"}
	}
	return Query{
		Predicates: []Predicate{At("document.type", c.config.DocumentType)},
		Fetch:      fetch,
		Orderings:  c.config.Orderings,
		PageSize:   c.config.PageSize,
		Page:       pageNum,
	}
}
