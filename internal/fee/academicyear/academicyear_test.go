package academicyear

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "long form", in: "2024-2025", want: "2024-25"},
		{name: "short form", in: "2024-25", want: "2024-25"},
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   ", want: ""},
		{name: "padded long form", in: " 2023-2024 ", want: "2023-24"},
		{name: "free text", in: "FY24", want: "FY24"},
		{name: "non digit long form", in: "abcd-efgh", want: "abcd-efgh"},
		{name: "single year", in: "2024", want: "2024"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []string{"2024-2025", "2024-25", "", "FY24"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("2024-2025", "2024-25"))
	assert.True(t, Equal("", ""))
	assert.False(t, Equal("2024-25", "2023-24"))
	assert.False(t, Equal("2024-25", ""))
}
