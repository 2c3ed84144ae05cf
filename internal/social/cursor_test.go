package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCursor(t *testing.T) {
	testCases := []struct {
		name      string
		cursor    string
		expectErr bool
	}{
		{name: "valid", cursor: "2024-01-05T10:00:00Z|42"},
		{name: "valid with nanos", cursor: "2024-01-05T10:00:00.123456Z|1"},
		{name: "no separator", cursor: "not-a-cursor", expectErr: true},
		{name: "non integer id", cursor: "2024-01-05|abc", expectErr: true},
		{name: "too many parts", cursor: "2024-01-05T10:00:00Z|1|2", expectErr: true},
		{name: "bad timestamp", cursor: "yesterday|42", expectErr: true},
		{name: "empty", cursor: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts, id, err := decodeCursor(tc.cursor)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidCursor)
				return
			}
			require.NoError(t, err)
			assert.False(t, ts.IsZero())
			assert.Positive(t, id)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2024, 1, 5, 10, 30, 0, 123456000, time.UTC)
	activity := Activity{ID: 42, CreatedAt: createdAt}

	ts, id, err := decodeCursor(encodeCursor(activity))
	require.NoError(t, err)
	assert.True(t, ts.Equal(createdAt))
	assert.Equal(t, int64(42), id)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, defaultFeedLimit, normalizeLimit(0))
	assert.Equal(t, defaultFeedLimit, normalizeLimit(-5))
	assert.Equal(t, 1, normalizeLimit(1))
	assert.Equal(t, maxFeedLimit, normalizeLimit(50))
	assert.Equal(t, maxFeedLimit, normalizeLimit(51))
	assert.Equal(t, maxFeedLimit, normalizeLimit(1000))
}

func TestFeedPage_NextCursor(t *testing.T) {
	now := time.Now().UTC()
	items := []Activity{
		{ID: 3, CreatedAt: now},
		{ID: 2, CreatedAt: now.Add(-time.Minute)},
	}

	// full page carries a cursor pointing at its last item
	page := feedPage(items, 2)
	require.NotNil(t, page.NextCursor)
	ts, id, err := decodeCursor(*page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.True(t, ts.Equal(items[1].CreatedAt))

	// short page means the feed is exhausted
	page = feedPage(items, 5)
	assert.Nil(t, page.NextCursor)

	// empty page
	page = feedPage(nil, 5)
	assert.Nil(t, page.NextCursor)
	assert.Empty(t, page.Items)
}
