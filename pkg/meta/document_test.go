// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package meta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangzq12/contract-abstract/pkg/ir"
	"github.com/yangzq12/contract-abstract/pkg/layout"
)

func TestContractMetaMarshalsElementaryEntityInBytes(t *testing.T) {
	cm := NewContractMeta("0xabc")
	cm.SetEntity("balance", &layout.TypeMeta{
		Kind: ir.KindElementary, DataType: "uint256", SizeBits: 256,
		StorageInfo: layout.SlotFromUint64(0, 0),
	})

	raw, err := json.Marshal(cm)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	entities := out["entities"].(map[string]any)
	balance := entities["balance"].(map[string]any)
	assert.Equal(t, "uint256", balance["dataType"])
	dataMeta := balance["dataMeta"].(map[string]any)
	assert.Equal(t, float64(32), dataMeta["size"])
}

func TestContractMetaMarshalsStructFieldsInDeclarationOrder(t *testing.T) {
	cm := NewContractMeta("")
	structMeta := &layout.TypeMeta{
		Kind: ir.KindStruct, StructName: "S",
		Fields: []layout.TypeMetaField{
			{Name: "a", Type: &layout.TypeMeta{Kind: ir.KindElementary, DataType: "uint128", SizeBits: 128}},
			{Name: "b", Type: &layout.TypeMeta{Kind: ir.KindElementary, DataType: "address", SizeBits: 160}},
		},
	}
	cm.SetEntity("s", structMeta)

	raw, err := json.Marshal(cm)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	entities := out["entities"].(map[string]any)
	s := entities["s"].(map[string]any)
	dataMeta := s["dataMeta"].(map[string]any)
	fields := dataMeta["fields"].([]any)
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].(map[string]any)["name"])
	assert.Equal(t, "b", fields[1].(map[string]any)["name"])
}

func TestDocumentMarshalsContractsInInsertionOrder(t *testing.T) {
	doc := NewDocument()
	doc.SetContract("Second", NewContractMeta(""))
	doc.SetContract("First", NewContractMeta(""))

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.True(t, indexOf(string(raw), `"Second"`) < indexOf(string(raw), `"First"`))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
