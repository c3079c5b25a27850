// Package convert translates websocket frames to bridge requests and bridge events to frames.
package convert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/pto-keeper/internal/bridge"
	"github.com/and161185/pto-keeper/internal/model"
)

// FrameError is the frame type used for transport-level errors.
const FrameError = "error"

// Frame is the unit exchanged on the websocket.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the body of an "error" frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decoding errors.
var (
	ErrUnknownType = errors.New("unsupported frame type")
	ErrBadPayload  = errors.New("invalid frame payload")
)

// DecodeRequest parses an outbound frame. Payloads may be objects ({"uid": ...})
// or the positional form produced by the UI port encoder (["uid", {...}] or "uid").
func DecodeRequest(f Frame) (bridge.Call, error) {
	call := bridge.Call{RequestID: f.RequestID}
	var err error
	switch f.Type {
	case bridge.OpSignOut:
		call.Request = bridge.SignOut{}
	case bridge.OpRequestPto:
		call.Request = bridge.RequestPto{}
	case bridge.OpCreateSelf:
		var r bridge.CreateSelf
		r.UID, err = decodeUID(f.Payload)
		call.Request = r
	case bridge.OpRemoveName:
		var r bridge.RemoveName
		r.UID, err = decodeUID(f.Payload)
		call.Request = r
	case bridge.OpUpdatePto:
		var r bridge.UpdatePto
		err = decodePair(f.Payload, &r, &r.UID, &r.Years)
		call.Request = r
	case bridge.OpSetName:
		var r bridge.SetName
		err = decodePair(f.Payload, &r, &r.UID, &r.Name)
		call.Request = r
	default:
		return bridge.Call{}, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	if err != nil {
		return bridge.Call{}, fmt.Errorf("%w: %s: %v", ErrBadPayload, f.Type, err)
	}
	return call, nil
}

// EncodeRequest renders r in object form.
func EncodeRequest(requestID string, r bridge.Request) (Frame, error) {
	f := Frame{Type: r.Op(), RequestID: requestID}
	switch r.(type) {
	case bridge.SignOut, bridge.RequestPto:
		return f, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return Frame{}, err
	}
	f.Payload = b
	return f, nil
}

// EncodeEvent renders an inbound event. loggedOut carries a null payload.
func EncodeEvent(ev bridge.Event) (Frame, error) {
	f := Frame{Type: ev.Name()}
	var body any
	switch e := ev.(type) {
	case bridge.LoggedIn:
		body = e.User
	case bridge.LoggedOut:
		f.Payload = json.RawMessage("null")
		return f, nil
	case bridge.PtoData:
		recs := e.Records
		if recs == nil {
			recs = model.PtoCollection{}
		}
		body = recs
	case bridge.PtoError:
		f.RequestID = e.RequestID
		body = e
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownType, ev.Name())
	}
	b, err := json.Marshal(body)
	if err != nil {
		return Frame{}, err
	}
	f.Payload = b
	return f, nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(f Frame) (bridge.Event, error) {
	switch f.Type {
	case bridge.EventLoggedIn:
		var u model.AuthUser
		if err := json.Unmarshal(f.Payload, &u); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return bridge.LoggedIn{User: u}, nil
	case bridge.EventLoggedOut:
		return bridge.LoggedOut{}, nil
	case bridge.EventPtoData:
		recs := model.PtoCollection{}
		if err := json.Unmarshal(f.Payload, &recs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return bridge.PtoData{Records: recs}, nil
	case bridge.EventPtoError:
		var e bridge.PtoError
		if err := json.Unmarshal(f.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if e.RequestID == "" {
			e.RequestID = f.RequestID
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
}

// ErrorFrame builds a transport error frame.
func ErrorFrame(requestID, code, message string) Frame {
	b, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return Frame{Type: FrameError, RequestID: requestID, Payload: b}
}

func decodeUID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("missing uid")
	}
	switch raw[0] {
	case '"':
		var uid string
		err := json.Unmarshal(raw, &uid)
		return uid, err
	case '[':
		var tuple []string
		if err := json.Unmarshal(raw, &tuple); err != nil {
			return "", err
		}
		if len(tuple) != 1 {
			return "", fmt.Errorf("want 1 element, got %d", len(tuple))
		}
		return tuple[0], nil
	case '{':
		var obj struct {
			UID string `json:"uid"`
		}
		err := json.Unmarshal(raw, &obj)
		return obj.UID, err
	}
	return "", errors.New("uid must be a string, array or object")
}

// decodePair fills either obj (object form) or first/second (tuple form).
func decodePair(raw json.RawMessage, obj, first, second any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	switch raw[0] {
	case '{':
		return json.Unmarshal(raw, obj)
	case '[':
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil {
			return err
		}
		if len(tuple) != 2 {
			return fmt.Errorf("want 2 elements, got %d", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], first); err != nil {
			return err
		}
		return json.Unmarshal(tuple[1], second)
	}
	return errors.New("payload must be an object or array")
}
