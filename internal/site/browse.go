package site

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// Browse prints the posts held by ctrl and loads the next page each time
// a line is read from in, like pressing the load more button. It returns
// when the posts are exhausted, "q" is entered, in reaches EOF or ctx is done.
func Browse(ctx context.Context, ctrl *feed.Controller, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s\n\n", PageTitle)
	printPosts(out, ctrl.Items())

	scanner := bufio.NewScanner(in)
	for ctrl.HasMore() {
		fmt.Fprintf(out, "[Enter] %s  [q] sair\n", LoadMoreLabel)

		if !scanner.Scan() {
			return scanner.Err()
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := ctrl.LoadMore(ctx)
		switch {
		case err == nil:
			printPosts(out, page.Items)
		case errors.Is(err, feed.ErrNoMorePages):
			// Cursor exhausted between the check and the load.
		case errors.Is(err, context.Canceled):
			return err
		default:
			fmt.Fprintf(out, "%s: %v\n", LoadErrorLabel, err)
		}
	}

	fmt.Fprintln(out, "Fim dos posts.")
	return nil
}

func printPosts(out io.Writer, posts []feed.Post) {
	for _, p := range posts {
		v := NewPostView(p)
		fmt.Fprintf(out, "%s\n  %s\n  %s | %s | %s\n\n", v.Title, v.Subtitle, v.Date, v.Author, v.Href)
	}
}
