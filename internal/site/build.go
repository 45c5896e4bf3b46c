package site

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// Output file names of a build.
const (
	IndexFile = "index.html"
	DataFile  = "posts.json"
)

// FirstPager fetches the first page of posts.
type FirstPager interface {
	FirstPage(ctx context.Context) (feed.Page, error)
}

// Build fetches the first page and writes the static home page and its
// initial data into outDir.
func Build(ctx context.Context, src FirstPager, outDir string) (feed.State, error) {
	start := time.Now()

	page, err := src.FirstPage(ctx)
	if err != nil {
		return feed.State{}, fmt.Errorf("fetch first page: %w", err)
	}
	state := feed.Initialize(page)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return feed.State{}, fmt.Errorf("create output dir: %w", err)
	}

	var html bytes.Buffer
	if err := RenderIndex(&html, state); err != nil {
		return feed.State{}, err
	}
	if err := writeFileAtomic(filepath.Join(outDir, IndexFile), html.Bytes()); err != nil {
		return feed.State{}, err
	}

	data, err := json.MarshalIndent(feed.Page{Items: state.Items, NextCursor: state.Cursor}, "", "  ")
	if err != nil {
		return feed.State{}, fmt.Errorf("encode posts: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(outDir, DataFile), data); err != nil {
		return feed.State{}, err
	}

	log.Info().
		Str("out_dir", outDir).
		Int("posts", len(state.Items)).
		Bool("has_more", state.HasMore()).
		Dur("duration", time.Since(start)).
		Msg("Site built")

	return state, nil
}

// ReadPage loads the initial page written by Build.
func ReadPage(path string) (feed.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return feed.Page{}, fmt.Errorf("read posts: %w", err)
	}
	var page feed.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return feed.Page{}, fmt.Errorf("decode posts %s: %w", path, err)
	}
	return page, nil
}

// writeFileAtomic replaces path so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
