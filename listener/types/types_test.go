package types_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/relay/listener/types"
)

func TestMatcher_Zero(t *testing.T) {
	var m types.Matcher
	assert.True(t, m.IsZero())
	assert.False(t, m.Match(&types.Message{Type: ""}))
	assert.False(t, m.Match(&types.Message{Type: "ANY"}))
	assert.True(t, types.ByTag("").IsZero())
	assert.True(t, types.ByPredicate(nil).IsZero())
	assert.Equal(t, "none", m.String())
}

func TestMatcher_ByTag(t *testing.T) {
	m := types.ByTag("RESOLVE")
	assert.True(t, m.Match(&types.Message{Type: "RESOLVE"}))
	assert.False(t, m.Match(&types.Message{Type: "REJECT"}))
	assert.False(t, m.Match(nil))
	assert.Equal(t, "RESOLVE", m.String())
}

func TestMatcher_ByPredicate(t *testing.T) {
	m := types.ByPredicate(func(msg *types.Message) bool { return msg.Payload == "yes" })
	assert.True(t, m.Match(&types.Message{Type: "ANYTHING", Payload: "yes"}))
	assert.False(t, m.Match(&types.Message{Type: "ANYTHING", Payload: "no"}))
	assert.Equal(t, "predicate", m.String())
}

func TestStart_TagDefaultSetPayload(t *testing.T) {
	s := types.StartTag("START")
	assert.False(t, s.IsZero())

	msg := s.Build("abc", "foo", nil)
	assert.Equal(t, &types.Message{Type: "START", Payload: "foo", Meta: &types.Meta{ID: "abc"}}, msg)
}

func TestStart_TagCustomSetPayload(t *testing.T) {
	set := func(base *types.Message, payload any) *types.Message {
		return &types.Message{Type: base.Type + "_X", Payload: []any{payload}, Meta: base.Meta}
	}
	msg := types.StartTag("START").Build("abc", 1, set)
	assert.Equal(t, "START_X", msg.Type)
	assert.Equal(t, []any{1}, msg.Payload)
	assert.Equal(t, "abc", msg.MetaID())
}

func TestStart_Builder(t *testing.T) {
	var got types.StartInput
	s := types.StartWith(func(in types.StartInput) *types.Message {
		got = in
		return &types.Message{Type: "CUSTOM"}
	})
	msg := s.Build("abc", "foo", func(*types.Message, any) *types.Message {
		t.Fatal("SetPayload must not be used with a builder")
		return nil
	})
	assert.Equal(t, "CUSTOM", msg.Type)
	assert.Equal(t, types.StartInput{Payload: "foo", Meta: types.Meta{ID: "abc"}}, got)
	assert.True(t, types.Start{}.IsZero())
}

func TestDefaultSetPayload_CopiesBase(t *testing.T) {
	base := &types.Message{Type: "START", Meta: &types.Meta{ID: "1"}}
	out := types.DefaultSetPayload(base, "p")
	assert.Nil(t, base.Payload, "base must not be modified")
	assert.Equal(t, "p", out.Payload)
	assert.Equal(t, "START", out.Type)
}

func TestMessage_MetaID(t *testing.T) {
	var nilMsg *types.Message
	assert.Equal(t, "", nilMsg.MetaID())
	assert.Equal(t, "", (&types.Message{}).MetaID())
	assert.Equal(t, "x", (&types.Message{Meta: &types.Meta{ID: "x"}}).MetaID())
}

func TestRejectedError(t *testing.T) {
	err := &types.RejectedError{Type: "REJECT", Reason: "bar"}
	assert.EqualError(t, err, "rejected by REJECT: bar")
	assert.Nil(t, err.Unwrap())

	cause := errors.New("disk full")
	err = &types.RejectedError{Type: "REJECT", Reason: cause}
	assert.EqualError(t, err, "disk full")
	assert.ErrorIs(t, err, cause)

	assert.EqualError(t, &types.RejectedError{Reason: 3}, "rejected: 3")
}

func TestParseMessage(t *testing.T) {
	msg, err := types.ParseMessage([]byte(`{"type":"RESOLVE","payload":{"a":1},"meta":{"id":"abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, "RESOLVE", msg.Type)
	assert.Equal(t, map[string]any{"a": float64(1)}, msg.Payload)
	assert.Equal(t, "abc", msg.MetaID())

	msg, err = types.ParseMessage([]byte(`{"type":"RESOLVE","meta":{"id":42}}`))
	require.NoError(t, err)
	assert.Equal(t, "42", msg.MetaID())
	assert.Nil(t, msg.Payload)

	msg, err = types.ParseMessage([]byte(`{"type":"PING"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Meta)
}

func TestParseMessage_Errors(t *testing.T) {
	_, err := types.ParseMessage([]byte(`not json`))
	assert.Error(t, err)

	_, err = types.ParseMessage([]byte(`{"payload":1}`))
	assert.EqualError(t, err, "parse message: type is required")

	_, err = types.ParseMessage([]byte(`{"type":"X","meta":"nope"}`))
	assert.Error(t, err)

	_, err = types.ParseMessage([]byte(`null`))
	assert.Error(t, err)
}

func TestMessage_Map(t *testing.T) {
	msg := &types.Message{Type: "T", Payload: 1, Meta: &types.Meta{ID: "i"}}
	assert.Equal(t, map[string]any{
		"type":    "T",
		"payload": 1,
		"meta":    map[string]any{"id": "i"},
	}, msg.Map())
}
