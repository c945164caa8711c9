package pagination

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorEncodeDecode(t *testing.T) {
	at := time.Date(2024, 9, 1, 10, 0, 0, 123, time.UTC)
	token := Cursor{ID: 42, CreatedAt: at}.Encode()

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), cursor.ID)
	assert.True(t, cursor.CreatedAt.Equal(at))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", Cursor{ID: 7}.Encode(), Cursor{CreatedAt: time.Now()}.Encode()} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestPage(t *testing.T) {
	base := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := []int{3, 2, 1}
	cursorOf := func(v int) Cursor {
		return Cursor{ID: snowflake.ID(v), CreatedAt: base.Add(time.Duration(v) * time.Minute)}
	}

	kept, info := Page(rows, 2, cursorOf)
	assert.Equal(t, []int{3, 2}, kept)
	assert.True(t, info.HasMore)
	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), next.ID)

	kept, info = Page(rows, 3, cursorOf)
	assert.Len(t, kept, 3)
	assert.Equal(t, PageInfo{}, info)

	kept, info = Page([]int{}, 3, cursorOf)
	assert.Empty(t, kept)
	assert.False(t, info.HasMore)
}
