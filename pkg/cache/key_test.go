package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "api descriptor",
			key:  CacheKey{Endpoint: "/api/v2"},
			want: "prismic:api/v2",
		},
		{
			name: "search with sorted params",
			key: CacheKey{
				Endpoint: "/api/v2/documents/search",
				QueryParams: url.Values{
					"pageSize": []string{"2"},
					"fetch":    []string{"post.title,post.subtitle,post.author"},
				},
				Ref: "YEoUJxEAACEAhJxp",
			},
			want: "prismic:api/v2/documents/search:fetch=post.title,post.subtitle,post.author:pageSize=2:ref=YEoUJxEAACEAhJxp",
		},
		{
			name: "ref and token are not query parts",
			key: CacheKey{
				Endpoint: "/api/v2/documents/search",
				QueryParams: url.Values{
					"page":         []string{"2"},
					"ref":          []string{"YEoUJxEAACEAhJxp"},
					"access_token": []string{"secret"},
				},
			},
			want: "prismic:api/v2/documents/search:page=2:ref=YEoUJxEAACEAhJxp",
		},
		{
			name: "explicit ref wins over query ref",
			key: CacheKey{
				Endpoint:    "/api/v2/documents/search",
				QueryParams: url.Values{"ref": []string{"old"}},
				Ref:         "new",
			},
			want: "prismic:api/v2/documents/search:ref=new",
		},
		{
			name: "multi-valued param sorted",
			key: CacheKey{
				Endpoint:    "/api/v2/documents/search",
				QueryParams: url.Values{"q": []string{"b", "a"}},
			},
			want: "prismic:api/v2/documents/search:q=a,b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Endpoint: "/api/v2/documents/search",
		QueryParams: url.Values{
			"q":        []string{`[[at(document.type,"post")]]`},
			"pageSize": []string{"2"},
			"page":     []string{"3"},
		},
		Ref: "master",
	}

	first := key.String()
	for i := 0; i < 20; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKeyFromURL(t *testing.T) {
	u, err := url.Parse("https://spacetraveling.cdn.prismic.io/api/v2/documents/search?ref=abc&page=2&pageSize=2")
	if err != nil {
		t.Fatal(err)
	}

	key := KeyFromURL(u)
	if key.Ref != "abc" {
		t.Errorf("Ref = %q, want abc", key.Ref)
	}
	if key.Repository != "spacetraveling.cdn.prismic.io" {
		t.Errorf("Repository = %q", key.Repository)
	}
	want := "prismic:spacetraveling.cdn.prismic.io:api/v2/documents/search:page=2:pageSize=2:ref=abc"
	if got := key.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCacheKey_RepositoryScoped(t *testing.T) {
	a := CacheKey{Repository: "blog-a.cdn.prismic.io", Endpoint: "/api/v2/documents/search", Ref: "r1"}
	b := a
	b.Repository = "blog-b.cdn.prismic.io"

	if a.String() == b.String() {
		t.Errorf("keys of two repositories collide: %q", a.String())
	}

	upper := a
	upper.Repository = "BLOG-A.cdn.prismic.io"
	if upper.String() != a.String() {
		t.Errorf("repository host should be case-insensitive: %q vs %q", upper.String(), a.String())
	}
}
