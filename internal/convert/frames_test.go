package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/pto-keeper/internal/bridge"
	"github.com/and161185/pto-keeper/internal/model"
)

func TestDecodeRequest_AcceptsObjectAndTupleForms(t *testing.T) {
	t.Parallel()
	years := model.Years{2024: {Days: 3}}
	cases := []struct {
		name  string
		frame Frame
		want  bridge.Request
	}{
		{"signOut", Frame{Type: "signOut"}, bridge.SignOut{}},
		{"requestPto null", Frame{Type: "requestPto", Payload: json.RawMessage("null")}, bridge.RequestPto{}},
		{"createSelf bare", Frame{Type: "createSelf", Payload: json.RawMessage(`"u1"`)}, bridge.CreateSelf{UID: "u1"}},
		{"createSelf object", Frame{Type: "createSelf", Payload: json.RawMessage(`{"uid":"u1"}`)}, bridge.CreateSelf{UID: "u1"}},
		{"removeName tuple", Frame{Type: "removeName", Payload: json.RawMessage(`["u1"]`)}, bridge.RemoveName{UID: "u1"}},
		{"updatePto tuple", Frame{Type: "updatePto", Payload: json.RawMessage(`["u1",{"2024":{"days":3}}]`)}, bridge.UpdatePto{UID: "u1", Years: years}},
		{"updatePto object", Frame{Type: "updatePto", Payload: json.RawMessage(`{"uid":"u1","years":{"2024":{"days":3}}}`)}, bridge.UpdatePto{UID: "u1", Years: years}},
		{"setName tuple", Frame{Type: "setName", Payload: json.RawMessage(`["u1","Alice"]`)}, bridge.SetName{UID: "u1", Name: "Alice"}},
		{"setName object", Frame{Type: "setName", Payload: json.RawMessage(`{"uid":"u1","name":"Alice"}`)}, bridge.SetName{UID: "u1", Name: "Alice"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.frame.RequestID = "r-" + tc.name
			call, err := DecodeRequest(tc.frame)
			require.NoError(t, err)
			assert.Equal(t, tc.want, call.Request)
			assert.Equal(t, "r-"+tc.name, call.RequestID)
		})
	}
}

func TestDecodeRequest_Errors(t *testing.T) {
	t.Parallel()
	_, err := DecodeRequest(Frame{Type: "deleteEverything"})
	require.ErrorIs(t, err, ErrUnknownType)

	bad := []Frame{
		{Type: "createSelf"},
		{Type: "createSelf", Payload: json.RawMessage(`42`)},
		{Type: "updatePto", Payload: json.RawMessage(`["u1"]`)},
		{Type: "updatePto", Payload: json.RawMessage(`["u1",{"twenty":{"days":1}}]`)},
		{Type: "setName", Payload: json.RawMessage(`"u1"`)},
		{Type: "removeName", Payload: json.RawMessage(`["a","b"]`)},
	}
	for _, f := range bad {
		_, err := DecodeRequest(f)
		require.ErrorIs(t, err, ErrBadPayload, "frame %s %s", f.Type, f.Payload)
	}
}

func TestEncodeEvent(t *testing.T) {
	t.Parallel()

	f, err := EncodeEvent(bridge.LoggedOut{})
	require.NoError(t, err)
	assert.Equal(t, "loggedOut", f.Type)
	assert.JSONEq(t, `null`, string(f.Payload))

	f, err = EncodeEvent(bridge.PtoData{Records: model.PtoCollection{
		"u1": {UID: "u1", Name: model.NullName(), Years: model.Years{2024: {Days: 0}}},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"u1":{"name":null,"years":{"2024":{"days":0}}}}`, string(f.Payload))

	f, err = EncodeEvent(bridge.PtoError{RequestID: "r9", Op: "updatePto", Code: bridge.CodeNotFound, Message: "record not found"})
	require.NoError(t, err)
	assert.Equal(t, "r9", f.RequestID)
	assert.JSONEq(t, `{"requestId":"r9","op":"updatePto","code":"NOT_FOUND","message":"record not found","retryable":false}`, string(f.Payload))

	f, err = EncodeEvent(bridge.LoggedIn{User: model.AuthUser{UID: "u1", ProviderID: "password", IDToken: "t"}})
	require.NoError(t, err)
	ev, err := DecodeEvent(f)
	require.NoError(t, err)
	assert.Equal(t, "u1", ev.(bridge.LoggedIn).User.UID)
}

func TestEncodeRequest_DecodesBack(t *testing.T) {
	t.Parallel()
	reqs := []bridge.Request{
		bridge.SignOut{},
		bridge.RequestPto{},
		bridge.CreateSelf{UID: "u"},
		bridge.UpdatePto{UID: "u", Years: model.Years{2025: {Days: 1.5}}},
		bridge.SetName{UID: "u", Name: "N"},
		bridge.RemoveName{UID: "u"},
	}
	for _, r := range reqs {
		f, err := EncodeRequest("id", r)
		require.NoError(t, err)
		call, err := DecodeRequest(f)
		require.NoError(t, err)
		assert.Equal(t, r, call.Request)
	}
}

func TestDecodeEvent_PtoDataStampsUIDs(t *testing.T) {
	t.Parallel()
	ev, err := DecodeEvent(Frame{Type: "ptoData", Payload: json.RawMessage(`{"a":{"years":{}}}`)})
	require.NoError(t, err)
	assert.Equal(t, "a", ev.(bridge.PtoData).Records["a"].UID)

	_, err = DecodeEvent(Frame{Type: "nope"})
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestErrorFrame(t *testing.T) {
	t.Parallel()
	f := ErrorFrame("r1", "INVALID_ARGUMENT", "bad")
	assert.Equal(t, FrameError, f.Type)
	assert.JSONEq(t, `{"code":"INVALID_ARGUMENT","message":"bad"}`, string(f.Payload))
}
