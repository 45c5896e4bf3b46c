package site

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

func pagedSource(pages map[string]feed.Page) feed.DataSource {
	return feed.DataSourceFunc(func(_ context.Context, cursor string) (feed.Page, error) {
		page, ok := pages[cursor]
		if !ok {
			return feed.Page{}, errors.New("unknown cursor")
		}
		return page, nil
	})
}

func TestBrowse_LoadsUntilExhausted(t *testing.T) {
	src := pagedSource(map[string]feed.Page{
		"p2": {Items: []feed.Post{{ID: "c", Title: "Post C"}}, NextCursor: "p3"},
		"p3": {Items: []feed.Post{{ID: "d", Title: "Post D"}}},
	})
	ctrl := feed.NewController(feed.Page{
		Items:      []feed.Post{{ID: "a", Title: "Post A"}, {ID: "b", Title: "Post B"}},
		NextCursor: "p2",
	}, src)

	var out bytes.Buffer
	if err := Browse(context.Background(), ctrl, strings.NewReader("\n\n"), &out); err != nil {
		t.Fatalf("Browse() error = %v", err)
	}

	text := out.String()
	order := []string{"Post A", "Post B", "Post C", "Post D", "Fim dos posts."}
	last := -1
	for _, s := range order {
		i := strings.Index(text, s)
		if i <= last {
			t.Fatalf("%q missing or out of order in:\n%s", s, text)
		}
		last = i
	}
	if len(ctrl.Items()) != 4 {
		t.Errorf("controller holds %d posts, want 4", len(ctrl.Items()))
	}
}

func TestBrowse_Quit(t *testing.T) {
	ctrl := feed.NewController(feed.Page{Items: []feed.Post{{ID: "a"}}, NextCursor: "p2"}, pagedSource(nil))

	var out bytes.Buffer
	if err := Browse(context.Background(), ctrl, strings.NewReader("q\n"), &out); err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if len(ctrl.Items()) != 1 {
		t.Error("quit still loaded a page")
	}
}

func TestBrowse_ErrorKeepsList(t *testing.T) {
	ctrl := feed.NewController(feed.Page{Items: []feed.Post{{ID: "a"}}, NextCursor: "broken"}, pagedSource(nil))

	var out bytes.Buffer
	if err := Browse(context.Background(), ctrl, strings.NewReader("\n"), &out); err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if !strings.Contains(out.String(), "Erro ao carregar posts") {
		t.Errorf("error not reported:\n%s", out.String())
	}
	if len(ctrl.Items()) != 1 || ctrl.Cursor() != "broken" {
		t.Error("failed load changed the list")
	}
}

func TestBrowse_NoMorePages(t *testing.T) {
	ctrl := feed.NewController(feed.Page{Items: []feed.Post{{ID: "a", Title: "Only"}}}, pagedSource(nil))

	var out bytes.Buffer
	if err := Browse(context.Background(), ctrl, strings.NewReader(""), &out); err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if strings.Contains(out.String(), LoadMoreLabel) {
		t.Error("load more offered without a cursor")
	}
}
