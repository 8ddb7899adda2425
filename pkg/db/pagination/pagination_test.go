package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1958000000000001", CreatedAt: "2026-08-15T00:00:00Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, "1958000000000001", cursor.ID)
	assert.Equal(t, "2026-08-15T00:00:00Z", cursor.CreatedAt)

	_, err = DecodeCursor("not a token")
	assert.Error(t, err)
}

func TestBuildCursorPageTrimsLookahead(t *testing.T) {
	type row struct{ id string }
	rows := []*row{{"a"}, {"b"}, {"c"}}

	info, page := BuildCursorPage(rows, 2, func(r *row) string { return r.id })
	assert.True(t, info.HasMore)
	assert.Len(t, page, 2)
	assert.Equal(t, "b", info.NextPageToken)

	info, page = BuildCursorPage(page, 2, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Len(t, page, 2)

	info, page = BuildCursorPage(nil, 2, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Empty(t, page)
	assert.Empty(t, info.NextPageToken)
}
