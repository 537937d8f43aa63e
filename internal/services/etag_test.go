package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentETag(t *testing.T) {
	t.Run("is stable for the same css", func(t *testing.T) {
		assert.Equal(t, ContentETag(".ui{}"), ContentETag(".ui{}"))
	})

	t.Run("changes with the css", func(t *testing.T) {
		assert.NotEqual(t, ContentETag(".ui{}"), ContentETag(".ui {}"))
	})

	t.Run("is quoted", func(t *testing.T) {
		tag := ContentETag("")
		assert.Len(t, tag, 34)
		assert.Equal(t, byte('"'), tag[0])
		assert.Equal(t, byte('"'), tag[len(tag)-1])
	})
}

func TestETagMatches(t *testing.T) {
	tag := ContentETag(".ui{}")

	cases := []struct {
		name   string
		header string
		want   bool
	}{
		{"exact", tag, true},
		{"weak", "W/" + tag, true},
		{"list", `"other", ` + tag, true},
		{"wildcard", "*", true},
		{"different", `"other"`, false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ETagMatches(tc.header, tag))
		})
	}
}
