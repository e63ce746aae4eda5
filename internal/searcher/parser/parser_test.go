package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"single", "a", []string{"a"}},
		{"two terms", "a b", []string{"a", "b"}},
		{"extra whitespace", "  a \t b\n", []string{"a", "b"}},
		{"duplicates collapse", "b a b", []string{"b", "a"}},
		{"case preserved", "Cat cat", []string{"Cat", "cat"}},
		{"operators are terms", "a AND b", []string{"a", "AND", "b"}},
		{"empty", "", []string{}},
		{"blank", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query)
			assert.Equal(t, tt.want, plan.Terms)
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, len(tt.want) == 0, plan.Empty())
		})
	}
}

func TestNormalizedIgnoresOrder(t *testing.T) {
	assert.Equal(t, Parse("b a").Normalized(), Parse("a  b a").Normalized())
	assert.NotEqual(t, Parse("a").Normalized(), Parse("a b").Normalized())
}
