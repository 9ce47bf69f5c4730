package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name  string
		input []Entry[Pretty]
		want  []Sheet
	}{
		{
			name:  "single entry",
			input: []Entry[Pretty]{{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}}},
			want:  []Sheet{{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}}},
		},
		{
			name: "identical entry twice",
			input: []Entry[Pretty]{
				{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
			},
			want: []Sheet{{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}}},
		},
		{
			name: "identical text and ranges under different urls",
			input: []Entry[Pretty]{
				{URL: "example.com/a", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com/b", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
			},
			want: []Sheet{{URL: "example.com/a", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}}},
		},
		{
			name: "different ranges under different urls",
			input: []Entry[Pretty]{
				{URL: "example.com/a", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com/b", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 5, End: 9}}},
			},
			want: []Sheet{{URL: "example.com/a", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}, {Start: 5, End: 9}}}},
		},
		{
			name: "different ranges under the same url",
			input: []Entry[Pretty]{
				{URL: "example.com", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 5, End: 9}, {Start: 0, End: 4}}},
			},
			want: []Sheet{{URL: "example.com", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}, {Start: 5, End: 9}}}},
		},
		{
			name: "different text under different urls",
			input: []Entry[Pretty]{
				{URL: "example.com/a", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com/b", Text: "b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
			},
			want: []Sheet{
				{URL: "example.com/a", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com/b", Text: "b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
			},
		},
		{
			name: "different text under the same url",
			input: []Entry[Pretty]{
				{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com", Text: "b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
			},
			want: []Sheet{
				{URL: "example.com", Text: "a {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
				{URL: "example.com", Text: "b {}", Ranges: []Range[Pretty]{{Start: 0, End: 4}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Deduplicate(tt.input))
		})
	}
}

func TestDeduplicateDoesNotAliasInput(t *testing.T) {
	ranges := []Range[Pretty]{{Start: 0, End: 4}}
	input := []Entry[Pretty]{
		{URL: "a", Text: "a {} b {}", Ranges: ranges},
		{URL: "b", Text: "a {} b {}", Ranges: []Range[Pretty]{{Start: 5, End: 9}}},
	}

	Deduplicate(input)

	assert.Equal(t, []Range[Pretty]{{Start: 0, End: 4}}, ranges)
}
