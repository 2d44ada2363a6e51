package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test looking up values succeeds, then fails
func TestLookup(t *testing.T) {
	for key, val := range keywords {
		require.Equal(t, val, LookupIdentifier(key), "lookup of %s", key)

		// Keywords are case sensitive; uppercase spellings are plain names.
		if key != "_" {
			require.Equal(t, NAME, LookupIdentifier(strings.ToUpper(key)), "lookup of %s", key)
		}
	}
}

func TestMessage(t *testing.T) {
	tok := Token{Type: ILLEGAL, Literal: "Unexpected character.", Line: 3}
	require.Equal(t, "Unexpected character.", tok.Message())

	tok = Token{Type: NAME, Literal: "foo"}
	require.Equal(t, "", tok.Message())
	require.True(t, IsKeyword(MATCH))
	require.False(t, IsKeyword(NAME))
}
