package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_UnmarshalAcceptsBareString(t *testing.T) {
	var entries []Entry
	err := json.Unmarshal([]byte(`["Called and left voicemail", {"type":"Call","note":"Reached seller","id":"persisted"}]`), &entries)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Note", entries[0]["type"])
	assert.Equal(t, "Called and left voicemail", entries[0]["note"])
	assert.Equal(t, "Call", entries[1]["type"])
	assert.Equal(t, "persisted", entries[1]["id"])
}

func TestEntry_UnmarshalNull(t *testing.T) {
	var entries []Entry
	require.NoError(t, json.Unmarshal([]byte(`[null, "called", null]`), &entries))
	require.Len(t, entries, 3)

	assert.Nil(t, entries[0])
	assert.Equal(t, Entry{"type": "Note", "note": "called"}, entries[1])
	assert.Nil(t, entries[2])

	e := Entry{"note": "kept"}
	require.NoError(t, json.Unmarshal([]byte(`null`), &e))
	assert.Nil(t, e)
}

func TestEntry_CloneIsShallowCopy(t *testing.T) {
	e := Entry{"note": "a"}
	c := e.Clone()
	c["note"] = "b"
	assert.Equal(t, "a", e["note"])
	assert.Nil(t, Entry(nil).Clone())
}

func TestMatchKeys_Primary(t *testing.T) {
	testCases := []struct {
		name     string
		keys     MatchKeys
		expected string
		any      bool
	}{
		{"apn wins", MatchKeys{APN: "apn:1|c:dane", AddrFull: "a:x", OwnerAddrLite: "o:y"}, "apn:1|c:dane", true},
		{"address next", MatchKeys{AddrFull: "a:x", OwnerAddrLite: "o:y"}, "a:x", true},
		{"owner address last", MatchKeys{OwnerAddrLite: "o:y"}, "o:y", true},
		{"none", MatchKeys{}, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.keys.Primary())
			assert.Equal(t, tc.any, tc.keys.Any())
		})
	}
}
