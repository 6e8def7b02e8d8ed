package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripLineComment(t *testing.T) {
	d := DefaultDialect()

	cases := []struct {
		in, want string
	}{
		{"`a` int, -- id", "`a` int,"},
		{"`a` int DEFAULT '--x',", "`a` int DEFAULT '--x',"},
		{"`a` int DEFAULT 'it\\'s -- no', ", "`a` int DEFAULT 'it\\'s -- no', "},
		{"x--y", "x--y"},
		{"CREATE TABLE t ( --", "CREATE TABLE t ("},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, d.StripLineComment(tc.in), tc.in)
	}
}

func TestStripComments(t *testing.T) {
	d := DefaultDialect()

	cases := []struct {
		name, in, want string
	}{
		{"block", "a /* b */ c", "a   c"},
		{"block in literal", "'/* b */' c", "'/* b */' c"},
		{"line up to newline", "a -- b\nc", "a \nc"},
		{"line to end", "a -- b, c)", "a "},
		{"line in literal", "'a -- b' c", "'a -- b' c"},
		{"escaped quote keeps literal open", `'it\'s -- x' y`, `'it\'s -- x' y`},
		{"backtick identifier", "`a--b` int", "`a--b` int"},
		{"unclosed block", "a /* b", "a "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.stripComments(tc.in))
		})
	}
}
