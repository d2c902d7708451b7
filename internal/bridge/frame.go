package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame types used by the handshake.
const (
	TypeReady   = "ready"
	TypeWelcome = "welcome"
)

// Request is the bridge -> peer frame.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Welcome acknowledges a peer handshake.
type Welcome struct {
	Type          string `json:"type"`
	BridgeVersion string `json:"bridgeVersion"`
	Port          int    `json:"port"`
}

type frameKind int

const (
	kindReply frameKind = iota
	kindHandshake
	kindNotice
)

// inbound is a decoded peer -> bridge frame.
type inbound struct {
	kind   frameKind
	typ    string
	id     string
	result json.RawMessage
	errMsg string
	failed bool
}

// decodeInbound classifies a raw frame as handshake, other uncorrelated
// notice, or correlated reply. Replies carry result XOR error; a missing
// result is a null result and an error field wins over a result field.
func decodeInbound(raw []byte) (inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if fields == nil {
		return inbound{}, fmt.Errorf("%w: null frame", ErrMalformedFrame)
	}

	var typ string
	if t, ok := fields["type"]; ok {
		if err := json.Unmarshal(t, &typ); err != nil {
			return inbound{}, fmt.Errorf("%w: type is not a string", ErrMalformedFrame)
		}
	}

	rawID, hasID := fields["id"]
	if !hasID || isNull(rawID) {
		if typ == TypeReady {
			return inbound{kind: kindHandshake, typ: typ}, nil
		}
		if typ != "" {
			return inbound{kind: kindNotice, typ: typ}, nil
		}
		return inbound{}, fmt.Errorf("%w: neither id nor type", ErrMalformedFrame)
	}

	var id string
	if err := json.Unmarshal(rawID, &id); err != nil || id == "" {
		return inbound{}, fmt.Errorf("%w: id must be a non-empty string", ErrMalformedFrame)
	}
	in := inbound{kind: kindReply, typ: typ, id: id, result: json.RawMessage("null")}
	if e, ok := fields["error"]; ok && !isNull(e) {
		in.failed = true
		in.errMsg = errorText(e)
		return in, nil
	}
	if r, ok := fields["result"]; ok {
		in.result = r
	}
	return in, nil
}

func errorText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 || isNull(p) {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("params are not valid JSON")
		}
		return p, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if isNull(b) {
		return json.RawMessage("{}"), nil
	}
	return b, nil
}
