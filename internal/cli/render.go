package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacentio/livefeed/feed"
	"github.com/jacentio/livefeed/store"
)

// renderer prints feed items once each, in the order they are accumulated.
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, printed: make(map[string]bool)}
}

func (r *renderer) render(st feed.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range st.Items {
		if r.printed[it.ID] {
			continue
		}
		r.printed[it.ID] = true
		fmt.Fprintln(r.out, formatItem(it))
	}
}

func formatItem(it store.Item) string {
	author, _ := it.Field("author_name").(string)
	if author == "" {
		author, _ = it.Field("author_id").(string)
	}
	if author == "" {
		author = "anonymous"
	}
	message, _ := it.Field("message").(string)

	stamp := "--:--:--"
	if ts, ok := it.Field("created_at").(time.Time); ok {
		stamp = ts.Local().Format(time.TimeOnly)
	}
	return fmt.Sprintf("[%s] %s: %s", stamp, author, message)
}
