package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeGenerator_Shape(t *testing.T) {
	gen := NewCodeGenerator("DYN", 6)

	for i := 0; i < 200; i++ {
		code, err := gen()
		require.NoError(t, err)
		require.Len(t, code, 9)
		assert.True(t, strings.HasPrefix(code, "DYN"))
		for _, r := range code[3:] {
			assert.Contains(t, codeAlphabet, string(r))
		}
	}
}

func TestNewCodeGenerator_Distinct(t *testing.T) {
	gen := NewCodeGenerator("", 8)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := gen()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
