// Package site renders the blog home page and serves it together with the
// "load more" API.
package site

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

const (
	// PageTitle is the home page title.
	PageTitle = "Home | spacetraveling"

	// LoadMoreLabel is the text of the load more button.
	LoadMoreLabel = "Carregar mais posts"

	// LoadErrorLabel prefixes a failed load more.
	LoadErrorLabel = "Erro ao carregar posts"

	// PostsAPIPath serves the next page for a cursor.
	PostsAPIPath = "/api/posts"
)

//go:embed templates/index.html.tmpl
var indexSource string

var indexTemplate = template.Must(template.New("index").Parse(indexSource))

// PostView is a post as displayed, shared by the page and the JSON API.
type PostView struct {
	ID          string     `json:"id"`
	UID         string     `json:"uid,omitempty"`
	Href        string     `json:"href"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Author      string     `json:"author"`
	Date        string     `json:"date"`
	PublishedAt *time.Time `json:"first_publication_date"`
}

// NewPostView prepares p for display.
func NewPostView(p feed.Post) PostView {
	return PostView{
		ID:          p.ID,
		UID:         p.UID,
		Href:        PostHref(p),
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Author:      p.Author,
		Date:        FormatDate(p.PublicationDate),
		PublishedAt: p.PublicationDate,
	}
}

// PostHref is the link to the post page.
func PostHref(p feed.Post) string {
	return "/post/" + p.Slug()
}

func postViews(posts []feed.Post) []PostView {
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = NewPostView(p)
	}
	return views
}

type indexData struct {
	Title         string
	Posts         []PostView
	Cursor        string
	HasMore       bool
	LoadMoreLabel  string
	LoadErrorLabel string
	APIPath        string
}

// RenderIndex writes the home page for s. The load more button and its
// error line are only rendered while s has a cursor.
func RenderIndex(w io.Writer, s feed.State) error {
	data := indexData{
		Title:          PageTitle,
		Posts:          postViews(s.Items),
		Cursor:         s.Cursor,
		HasMore:        s.HasMore(),
		LoadMoreLabel:  LoadMoreLabel,
		LoadErrorLabel: LoadErrorLabel,
		APIPath:        PostsAPIPath,
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}
