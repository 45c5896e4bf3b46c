package pagination

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// chainSource serves pages "1".."n" of two posts each; the cursor is the
// next page number.
func chainSource(n int, failAt string) feed.DataSource {
	return feed.DataSourceFunc(func(_ context.Context, cursor string) (feed.Page, error) {
		if cursor == failAt {
			return feed.Page{}, errors.New("upstream unavailable")
		}
		num, err := strconv.Atoi(cursor)
		if err != nil {
			return feed.Page{}, err
		}
		return numberedPage(num, n), nil
	})
}

func numberedPage(num, total int) feed.Page {
	page := feed.Page{Items: []feed.Post{
		{ID: fmt.Sprintf("p%d-a", num)},
		{ID: fmt.Sprintf("p%d-b", num)},
	}}
	if num < total {
		page.NextCursor = strconv.Itoa(num + 1)
	}
	return page
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxPages != 500 {
		t.Errorf("MaxPages = %d, want 500", cfg.MaxPages)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
}

func TestWalk_FollowsChainToEnd(t *testing.T) {
	ctrl := feed.NewController(numberedPage(1, 4), chainSource(4, ""))

	state, err := NewWalker(DefaultConfig()).Walk(context.Background(), ctrl)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if len(state.Items) != 8 {
		t.Errorf("len(Items) = %d, want 8", len(state.Items))
	}
	if state.HasMore() {
		t.Error("HasMore() = true after walk")
	}
	if state.Items[7].ID != "p4-b" {
		t.Errorf("last item = %q, want p4-b", state.Items[7].ID)
	}
}

func TestWalk_SinglePage(t *testing.T) {
	calls := 0
	src := feed.DataSourceFunc(func(context.Context, string) (feed.Page, error) {
		calls++
		return feed.Page{}, nil
	})
	ctrl := feed.NewController(numberedPage(1, 1), src)

	state, err := NewWalker(DefaultConfig()).Walk(context.Background(), ctrl)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(state.Items) != 2 || calls != 0 {
		t.Errorf("items = %d, calls = %d; want 2, 0", len(state.Items), calls)
	}
}

func TestWalk_PartialResultOnFailure(t *testing.T) {
	ctrl := feed.NewController(numberedPage(1, 5), chainSource(5, "3"))

	state, err := NewWalker(DefaultConfig()).Walk(context.Background(), ctrl)
	if err == nil {
		t.Fatal("expected error")
	}

	var loadErr *feed.LoadError
	if !errors.As(err, &loadErr) || loadErr.Cursor != "3" {
		t.Errorf("err = %v, want LoadError at cursor 3", err)
	}
	if len(state.Items) != 4 {
		t.Errorf("len(Items) = %d, want 4 (pages 1-2)", len(state.Items))
	}
	if state.Cursor != "3" {
		t.Errorf("Cursor = %q, want the failed cursor kept", state.Cursor)
	}
}

func TestWalk_PageLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPages = 2
	ctrl := feed.NewController(numberedPage(1, 10), chainSource(10, ""))

	state, err := NewWalker(cfg).Walk(context.Background(), ctrl)
	if !errors.Is(err, ErrPageLimit) {
		t.Fatalf("err = %v, want ErrPageLimit", err)
	}
	if len(state.Items) != 6 {
		t.Errorf("len(Items) = %d, want 6", len(state.Items))
	}
}

func TestWalk_ContextCancelled(t *testing.T) {
	src := feed.DataSourceFunc(func(ctx context.Context, _ string) (feed.Page, error) {
		<-ctx.Done()
		return feed.Page{}, ctx.Err()
	})
	ctrl := feed.NewController(numberedPage(1, 3), src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWalker(DefaultConfig()).Walk(ctx, ctrl)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
