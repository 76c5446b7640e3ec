package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "case folded and de-duplicated",
			content: "hello #World and #world again #Test_1",
			want:    []string{"world", "test_1"},
		},
		{
			name:    "no hashtags",
			content: "just plain text",
			want:    []string{},
		},
		{
			name:    "bare hash sign is not a tag",
			content: "price is # 100",
			want:    []string{},
		},
		{
			name:    "adjacent punctuation terminates the tag",
			content: "#go! #go, #rust.",
			want:    []string{"go", "rust"},
		},
		{
			name:    "digits and underscores are word characters",
			content: "#2024_review",
			want:    []string{"2024_review"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, ExtractHashtags(tt.content))
		})
	}
}
