package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPtoRecord_MarshalJSON_NameStates(t *testing.T) {
	t.Parallel()

	absent := PtoRecord{UID: "u1", Years: SeedYears(2024)}
	b, err := json.Marshal(absent)
	require.NoError(t, err)
	assert.JSONEq(t, `{"years":{"2024":{"days":0}}}`, string(b))

	null := PtoRecord{UID: "u1", Name: NullName(), Years: Years{}}
	b, err = json.Marshal(null)
	require.NoError(t, err)
	assert.JSONEq(t, `{"years":{},"name":null}`, string(b))

	named := PtoRecord{UID: "u1", Name: NameOf("Alice"), Years: Years{2023: {Days: 2.5}}}
	b, err = json.Marshal(named)
	require.NoError(t, err)
	assert.JSONEq(t, `{"years":{"2023":{"days":2.5}},"name":"Alice"}`, string(b))
}

func TestPtoCollection_RoundTripKeepsNullMarker(t *testing.T) {
	t.Parallel()

	in := `{"a":{"years":{"2024":{"days":1}},"name":null},"b":{"years":{}},"c":{"years":{},"name":"Carl"}}`
	var c PtoCollection
	require.NoError(t, json.Unmarshal([]byte(in), &c))

	require.Len(t, c, 3)
	assert.Equal(t, "a", c["a"].UID)
	assert.True(t, c["a"].Name.IsNull())
	assert.Equal(t, 1.0, c["a"].Years[2024].Days)
	assert.False(t, c["b"].Name.Set)
	require.NotNil(t, c["c"].Name.Value)
	assert.Equal(t, "Carl", *c["c"].Name.Value)
}

func TestPtoRecord_UnmarshalJSON_BadYearKey(t *testing.T) {
	t.Parallel()

	var r PtoRecord
	err := json.Unmarshal([]byte(`{"years":{"twenty":{"days":1}}}`), &r)
	require.Error(t, err)
}

func TestAuthState_SignedIn(t *testing.T) {
	t.Parallel()

	assert.False(t, AuthState{}.SignedIn())
	assert.True(t, AuthState{Session: &Session{ID: "s"}}.SignedIn())
}

func TestAuthState_Same(t *testing.T) {
	t.Parallel()

	a := AuthState{Session: &Session{ID: "s", User: User{UID: "u"}, IDToken: "t1"}}
	b := AuthState{Session: &Session{ID: "s", User: User{UID: "u"}, IDToken: "t1"}}
	c := AuthState{Session: &Session{ID: "s", User: User{UID: "u"}, IDToken: "t2"}}

	assert.True(t, AuthState{}.Same(AuthState{}))
	assert.True(t, a.Same(b))
	assert.False(t, a.Same(c))
	assert.False(t, a.Same(AuthState{}))
	assert.False(t, AuthState{}.Same(a))
}
