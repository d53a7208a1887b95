package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	assert.Equal(t, "Q&A", Title("<html><head><title> Q&amp;A </title></head></html>"))
	assert.Equal(t, "", Title("<p>no title</p>"))
}

func TestToText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "paragraphs",
			input: "<p>Hello</p><p>World</p>",
			want:  "Hello\nWorld",
		},
		{
			name:  "scripts and styles removed",
			input: "<style>p{color:red}</style><script>alert(1)</script><div>Visible</div>",
			want:  "Visible",
		},
		{
			name:  "head dropped",
			input: "<html><head><title>T</title></head><body>Body</body></html>",
			want:  "Body",
		},
		{
			name:  "entities and breaks",
			input: "Fish &amp; chips<br/>Tea&nbsp;time",
			want:  "Fish & chips\nTea time",
		},
		{
			name:  "comments and spaces",
			input: "<!-- hidden -->A   \t b",
			want:  "A b",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToText(tt.input))
		})
	}
}
