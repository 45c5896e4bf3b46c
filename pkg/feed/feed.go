package feed

import "time"

// Post is a read-only post summary as delivered by the CMS.
type Post struct {
	// ID is the opaque, unique document identifier.
	ID string `json:"id"`

	// UID is the human-readable slug used for post links. May be empty.
	UID string `json:"uid,omitempty"`

	// PublicationDate is nil for unpublished drafts.
	PublicationDate *time.Time `json:"first_publication_date"`

	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

// Slug returns the path segment used to link to the post page.
func (p Post) Slug() string {
	if p.UID != "" {
		return p.UID
	}
	return p.ID
}

// Page is one fetch result.
type Page struct {
	Items []Post `json:"results"`

	// NextCursor is empty when no further pages exist.
	NextCursor string `json:"next_page"`
}

// State is the accumulated list plus the current cursor.
// Operations return new values and never alias the caller's slices.
type State struct {
	Items  []Post `json:"items"`
	Cursor string `json:"cursor"`
}

// Initialize creates the state for an initial page.
func Initialize(p Page) State {
	return State{
		Items:  clonePosts(p.Items),
		Cursor: p.NextCursor,
	}
}

// HasMore reports whether another page can be fetched.
func (s State) HasMore() bool {
	return s.Cursor != ""
}

// AppendPage concatenates q's items after s's items and replaces the cursor
// with q.NextCursor. It does not check that s still had a cursor and does not
// deduplicate, so appending the same page twice duplicates its items.
func AppendPage(s State, q Page) State {
	items := make([]Post, 0, len(s.Items)+len(q.Items))
	items = append(items, s.Items...)
	items = append(items, q.Items...)
	return State{
		Items:  items,
		Cursor: q.NextCursor,
	}
}

// appendUnique is AppendPage with items whose ID is already held dropped.
// It returns the number of dropped items.
func appendUnique(s State, q Page, seen map[string]struct{}) (State, int) {
	items := make([]Post, 0, len(s.Items)+len(q.Items))
	items = append(items, s.Items...)
	dropped := 0
	for _, p := range q.Items {
		if _, ok := seen[p.ID]; ok {
			dropped++
			continue
		}
		seen[p.ID] = struct{}{}
		items = append(items, p)
	}
	return State{Items: items, Cursor: q.NextCursor}, dropped
}

func clonePosts(in []Post) []Post {
	if in == nil {
		return []Post{}
	}
	out := make([]Post, len(in))
	copy(out, in)
	return out
}
