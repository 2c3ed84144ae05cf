package social

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 50
)

// encodeCursor produces an opaque feed cursor pointing at the given
// activity, the page after it starts strictly before (created_at, id).
func encodeCursor(a Activity) string {
	return fmt.Sprintf("%s|%d", a.CreatedAt.Format(time.RFC3339Nano), a.ID)
}

// decodeCursor splits a feed cursor into its timestamp and activity id
// parts. Anything that is not exactly "<timestamp>|<integer id>" is
// rejected with ErrInvalidCursor.
func decodeCursor(cursor string) (time.Time, int64, error) {
	parts := strings.Split(cursor, "|")
	if len(parts) != 2 {
		return time.Time{}, 0, ErrInvalidCursor
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, 0, ErrInvalidCursor
	}
	return ts, id, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultFeedLimit
	}
	if limit > maxFeedLimit {
		return maxFeedLimit
	}
	return limit
}

// feedPage wraps items into a page, emitting a next cursor only when
// the page is full. A final page that happens to be exactly full yields
// one extra empty page, accepted as a tradeoff for a single query.
func feedPage(items []Activity, limit int) *FeedPage {
	page := &FeedPage{Items: items}
	if len(items) == limit {
		cursor := encodeCursor(items[len(items)-1])
		page.NextCursor = &cursor
	}
	return page
}
