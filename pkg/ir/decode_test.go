// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A minimal one-contract, two-function dump: a scalar state variable, a
// setter that assigns a parameter into it, and a view getter that returns
// it, plus a constant with a literal initializer.
const sampleDump = `{
  "contracts": [
    {
      "name": "C",
      "storageVariablesOrdered": [
        {"name": "balance", "type": {"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}, "slot": 0, "offset": 0},
        {"name": "CAP", "type": {"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}, "slot": 1, "offset": 0,
         "isConstant": true,
         "initializer": {"kind": "Assignment", "rvalue": {"id": "k0", "name": "1000000", "type": {"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}, "origin": "constant", "constantLiteral": "1000000"}}}
      ],
      "functions": [
        {
          "name": "setBalance", "fullName": "C.setBalance(uint256)", "signature": "setBalance(uint256)",
          "entryPoint": true,
          "parameters": [{"id": "v0", "name": "v", "type": {"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}, "origin": "parameter"}],
          "entry": "b0",
          "nodes": [
            {"id": "b0", "irs": [
              {"kind": "Assignment",
               "lvalue": {"id": "sv0", "name": "balance", "type": {"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}, "origin": "state", "stateVar": "balance"},
               "rvalue": {"id": "v0"}}
            ]}
          ]
        },
        {
          "name": "getBalance", "fullName": "C.getBalance()", "signature": "getBalance()",
          "view": true, "entryPoint": true,
          "returnTypes": [{"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}],
          "entry": "b1",
          "nodes": [
            {"id": "b1", "irs": [
              {"kind": "Return",
               "values": [{"id": "sv1", "name": "balance", "type": {"kind": "elementary", "elementaryName": "uint256", "sizeBits": 256}, "origin": "state", "stateVar": "balance"}]}
            ]}
          ]
        }
      ]
    }
  ]
}`

func TestDecodeBuildsPointerGraph(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDump))
	require.NoError(t, err)
	require.Len(t, doc.Contracts, 1)

	c := doc.Contracts[0]
	require.Len(t, c.StorageVariablesOrdered, 2)
	assert.Equal(t, "balance", c.StorageVariablesOrdered[0].Name)
	assert.Equal(t, "CAP", c.StorageVariablesOrdered[1].Name)
	require.NotNil(t, c.StorageVariablesOrdered[1].Initializer)
	assert.Equal(t, "1000000", c.StorageVariablesOrdered[1].Initializer.RValue.ConstantLiteral)

	require.Len(t, c.Functions, 2)
	setFn, getFn := c.Functions[0], c.Functions[1]
	assert.Equal(t, "C.setBalance(uint256)", setFn.FullName)
	require.NotNil(t, setFn.Entry)
	require.Len(t, setFn.Entry.IRs, 1)

	assignOp := setFn.Entry.IRs[0]
	assert.Equal(t, OpAssignment, assignOp.Kind)
	require.NotNil(t, assignOp.LValue.StateVar)
	assert.Same(t, c.StorageVariablesOrdered[0], assignOp.LValue.StateVar)

	require.NotNil(t, getFn.Entry)
	returnOp := getFn.Entry.IRs[0]
	assert.Equal(t, OpReturn, returnOp.Kind)
	require.Len(t, returnOp.Values, 1)
	assert.Same(t, c.StorageVariablesOrdered[0], returnOp.Values[0].StateVar)
}

func TestDecodeResolvesRepeatedValueIDToSamePointer(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDump))
	require.NoError(t, err)

	setFn := doc.Contracts[0].Functions[0]
	assignOp := setFn.Entry.IRs[0]
	// The rvalue reuses id "v0", already introduced by the parameter list;
	// the builder must resolve it to the same *Value rather than minting
	// a second one missing its type/origin.
	require.NotNil(t, assignOp.RValue)
	assert.Same(t, setFn.Parameters[0], assignOp.RValue)
}

func TestDecodeRejectsCallToUnknownFunction(t *testing.T) {
	const badDump = `{
      "contracts": [{
        "name": "C",
        "functions": [{
          "name": "f", "fullName": "C.f()", "entry": "b0",
          "nodes": [{"id": "b0", "irs": [
            {"kind": "InternalCall", "calleeFullName": "C.missing()"}
          ]}]
        }]
      }]
    }`
	_, err := Decode(strings.NewReader(badDump))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	assert.Error(t, err)
}
