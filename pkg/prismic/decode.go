package prismic

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// publicationLayouts are the accepted first_publication_date formats.
var publicationLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// SearchResponse is one page of documents search results.
type SearchResponse struct {
	Page             int     `json:"page"`
	ResultsPerPage   int     `json:"results_per_page"`
	ResultsSize      int     `json:"results_size"`
	TotalResultsSize int     `json:"total_results_size"`
	TotalPages       int     `json:"total_pages"`
	NextPage         *string `json:"next_page"`
	PrevPage         *string `json:"prev_page"`

	Results []Document `json:"results" validate:"required,dive"`
}

// Document is a search result.
type Document struct {
	ID   string  `json:"id" validate:"required"`
	UID  *string `json:"uid"`
	Type string  `json:"type"`

	// FirstPublicationDate is null for documents never published.
	FirstPublicationDate *string `json:"first_publication_date"`

	Data *PostData `json:"data" validate:"required"`
}

// PostData holds the post fields the feed needs.
type PostData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeSearchResponse parses and validates a search response body.
// Malformed input yields a *ParseError.
func DecodeSearchResponse(body []byte) (*SearchResponse, error) {
	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		parseErrorsTotal.Inc()
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ParseError{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
				Err:    err,
			}
		}
		return nil, &ParseError{Reason: "malformed json", Err: err}
	}

	if err := validate.Struct(&resp); err != nil {
		parseErrorsTotal.Inc()
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, &ParseError{
				Field:  fieldPath(fe.Namespace()),
				Reason: fmt.Sprintf("failed %q check", fe.Tag()),
				Err:    err,
			}
		}
		return nil, &ParseError{Reason: "invalid response", Err: err}
	}

	return &resp, nil
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// ToPage maps the response to a feed page. The cursor is next_page.
func (r *SearchResponse) ToPage() (feed.Page, error) {
	items := make([]feed.Post, 0, len(r.Results))
	for i, doc := range r.Results {
		post, err := doc.toPost()
		if err != nil {
			parseErrorsTotal.Inc()
			return feed.Page{}, &ParseError{
				Field:  fmt.Sprintf("results[%d].first_publication_date", i),
				Reason: "unrecognised date format",
				Err:    err,
			}
		}
		items = append(items, post)
	}

	var next string
	if r.NextPage != nil {
		next = *r.NextPage
	}
	return feed.Page{Items: items, NextCursor: next}, nil
}

func (d Document) toPost() (feed.Post, error) {
	post := feed.Post{
		ID:       d.ID,
		Title:    d.Data.Title,
		Subtitle: d.Data.Subtitle,
		Author:   d.Data.Author,
	}
	if d.UID != nil {
		post.UID = *d.UID
	}
	if d.FirstPublicationDate != nil {
		t, err := parsePublicationDate(*d.FirstPublicationDate)
		if err != nil {
			return feed.Post{}, err
		}
		post.PublicationDate = &t
	}
	return post, nil
}

func parsePublicationDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range publicationLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
