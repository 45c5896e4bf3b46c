package prismic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Ref is a content version of the repository.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

// APIDescriptor is the response of the API entry point.
type APIDescriptor struct {
	Refs  []Ref             `json:"refs"`
	Types map[string]string `json:"types"`
}

// Predicate is a Prismic query predicate, e.g. [at(document.type, "post")].
type Predicate string

// At matches documents where path equals value.
func At(path, value string) Predicate {
	return Predicate(fmt.Sprintf("[at(%s, %q)]", path, value))
}

// Query describes a documents search.
type Query struct {
	Predicates []Predicate
	Fetch      []string
	Orderings  string
	PageSize   int
	Page       int

	// Ref defaults to the master ref.
	Ref string
}

// values encodes the query parameters.
func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("ref", q.Ref)
	if len(q.Predicates) > 0 {
		var b strings.Builder
		b.WriteString("[")
		for _, p := range q.Predicates {
			b.WriteString(string(p))
		}
		b.WriteString("]")
		v.Set("q", b.String())
	}
	if len(q.Fetch) > 0 {
		v.Set("fetch", strings.Join(q.Fetch, ","))
	}
	if q.Orderings != "" {
		v.Set("orderings", q.Orderings)
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// MasterRef returns the ref of the published content.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	u := *c.endpoint
	body, err := c.get(ctx, &u)
	if err != nil {
		return "", fmt.Errorf("get api descriptor: %w", err)
	}

	var api APIDescriptor
	if err := json.Unmarshal(body, &api); err != nil {
		parseErrorsTotal.Inc()
		return "", &ParseError{Reason: "malformed api descriptor", Err: err}
	}

	for _, ref := range api.Refs {
		if ref.IsMasterRef && ref.Ref != "" {
			c.observeMasterRef(ctx, ref.Ref)
			return ref.Ref, nil
		}
	}
	return "", ErrNoMasterRef
}

// observeMasterRef purges cached responses of older refs the first time a
// master ref is seen by this client.
func (c *Client) observeMasterRef(ctx context.Context, ref string) {
	if c.cache == nil {
		return
	}

	c.refMu.Lock()
	if c.masterRef == ref {
		c.refMu.Unlock()
		return
	}
	previous := c.masterRef
	c.masterRef = ref
	c.refMu.Unlock()

	removed, err := c.cache.PurgeStaleRefs(ctx, c.endpoint.Host, ref)
	if err != nil {
		c.logger.Warn().Err(err).Str("ref", ref).Msg("Failed to purge stale refs")
		return
	}
	c.logger.Info().
		Str("ref", ref).
		Str("previous_ref", previous).
		Int("purged", removed).
		Msg("Master ref observed")
}

// Query runs a documents search. An empty q.Ref is resolved to the master ref.
func (c *Client) Query(ctx context.Context, q Query) (*SearchResponse, error) {
	if q.Ref == "" {
		ref, err := c.MasterRef(ctx)
		if err != nil {
			return nil, err
		}
		q.Ref = ref
	}

	u := c.searchURL()
	u.RawQuery = q.values().Encode()
	return c.search(ctx, u)
}

// search fetches and decodes one search results page.
func (c *Client) search(ctx context.Context, u *url.URL) (*SearchResponse, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return DecodeSearchResponse(body)
}

func (c *Client) searchURL() *url.URL {
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/documents/search"
	u.RawQuery = ""
	return &u
}

// errorMessage extracts Prismic's {"message": ...} from an error body.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		}
	}
	return status
}
