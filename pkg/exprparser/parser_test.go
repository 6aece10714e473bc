// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package exprparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"bal",
		"bal[addr]",
		"reserves[rid].configuration",
		"arr[m[k]]",
		"a.b.c",
		"m[k1][k2].field",
	}
	for _, expr := range cases {
		node, err := Parse(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, expr, Format(node), expr)
	}
}

func TestParseRejectsLeadingDotOrBracket(t *testing.T) {
	for _, expr := range []string{".field", "[0]"} {
		_, err := Parse(expr)
		require.Error(t, err)
		var se *SyntaxError
		require.ErrorAs(t, err, &se)
	}
}

func TestParseRejectsUnmatchedBracket(t *testing.T) {
	_, err := Parse("bal[addr")
	require.Error(t, err)
}

func TestRootName(t *testing.T) {
	node, err := Parse("reserves[rid].configuration")
	require.NoError(t, err)
	assert.Equal(t, "reserves", RootName(node))
}

func TestJoinHelpers(t *testing.T) {
	base, err := Parse("bal")
	require.NoError(t, err)
	idx, err := Parse("addr")
	require.NoError(t, err)

	withIndex := JoinIndex(base, idx)
	assert.Equal(t, "bal[addr]", Format(withIndex))

	withField := JoinField(withIndex, "owner")
	assert.Equal(t, "bal[addr].owner", Format(withField))
}
