package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		kind    frameKind
		id      string
		result  string
		errMsg  string
		failed  bool
		invalid bool
	}{
		{name: "handshake", raw: `{"type":"ready"}`, kind: kindHandshake},
		{name: "handshake null id", raw: `{"type":"ready","id":null}`, kind: kindHandshake},
		{name: "notice", raw: `{"type":"documentChange"}`, kind: kindNotice},
		{name: "result", raw: `{"id":"r1","result":{"a":1}}`, kind: kindReply, id: "r1", result: `{"a":1}`},
		{name: "implicit null", raw: `{"id":"r1"}`, kind: kindReply, id: "r1", result: `null`},
		{name: "error string", raw: `{"id":"r1","error":"boom"}`, kind: kindReply, id: "r1", failed: true, errMsg: "boom"},
		{name: "error null is success", raw: `{"id":"r1","result":2,"error":null}`, kind: kindReply, id: "r1", result: `2`},
		{name: "error object", raw: `{"id":"r1","error":{"message":"bad node"}}`, kind: kindReply, id: "r1", failed: true, errMsg: "bad node"},
		{name: "error number", raw: `{"id":"r1","error":42}`, kind: kindReply, id: "r1", failed: true, errMsg: "42"},
		{name: "error wins", raw: `{"id":"r1","result":1,"error":"x"}`, kind: kindReply, id: "r1", failed: true, errMsg: "x"},
		{name: "reply with type", raw: `{"type":"response","id":"r1","result":1}`, kind: kindReply, id: "r1", result: `1`},
		{name: "invalid json", raw: `{`, invalid: true},
		{name: "array", raw: `[]`, invalid: true},
		{name: "null", raw: `null`, invalid: true},
		{name: "numeric id", raw: `{"id":1,"result":1}`, invalid: true},
		{name: "empty id", raw: `{"id":"","result":1}`, invalid: true},
		{name: "empty object", raw: `{}`, invalid: true},
		{name: "type not string", raw: `{"type":5}`, invalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := decodeInbound([]byte(tc.raw))
			if tc.invalid {
				require.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, in.kind)
			assert.Equal(t, tc.id, in.id)
			assert.Equal(t, tc.failed, in.failed)
			assert.Equal(t, tc.errMsg, in.errMsg)
			if tc.kind == kindReply && !tc.failed {
				assert.JSONEq(t, tc.result, string(in.result))
			}
		})
	}
}

func TestEncodeParams(t *testing.T) {
	for _, in := range []any{nil, map[string]any(nil)} {
		raw, err := encodeParams(in)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(raw))
	}
	raw, err := encodeParams(map[string]any{"nodeId": "1:2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodeId":"1:2"}`, string(raw))

	_, err = encodeParams(func() {})
	require.Error(t, err)
}

func TestCorrelationIDShape(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	a, b := newCorrelationID(now), newCorrelationID(now)
	assert.Regexp(t, `^req_1700000000123_[0-9a-f]{7}$`, a)
	assert.NotEqual(t, a, b)
}

func TestTableLifecycle(t *testing.T) {
	tb := newTable()
	p := newPending("x", "m", time.Now())
	require.True(t, tb.insert(p))
	require.False(t, tb.insert(newPending("x", "m", time.Now())))
	assert.Equal(t, 1, tb.len())

	assert.Same(t, p, tb.take("x"))
	assert.Nil(t, tb.take("x"))
	assert.True(t, p.settle([]byte("1"), nil))
	assert.False(t, p.settle(nil, ErrTimeout))
	assert.NoError(t, p.err)

	q := newPending("y", "m", time.Now())
	require.True(t, tb.insert(q))
	tb.remove(p)
	assert.Equal(t, 1, tb.len())
	assert.Len(t, tb.drain(), 1)
	assert.Equal(t, 0, tb.len())
}
