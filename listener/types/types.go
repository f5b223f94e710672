package types

import "fmt"

// Meta carries the correlation id a start message hands to its responders.
type Meta struct {
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Message represents a single message flowing through the store's dispatch pipeline.
type Message struct {
	Type    string `json:"type" yaml:"type"`                           // Message type tag, e.g. "SAVE", "SAVE_SUCCESS"
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty"` // Business data, opaque to the listener
	Meta    *Meta  `json:"meta,omitempty" yaml:"meta,omitempty"`       // Correlation metadata; may be nil
}

// MetaID returns the correlation id carried by msg, or "" if none.
func (msg *Message) MetaID() string {
	if msg == nil || msg.Meta == nil {
		return ""
	}
	return msg.Meta.ID
}

// StartInput is what a StartBuilder receives for one invocation.
type StartInput struct {
	Payload any
	Meta    Meta
}

// StartBuilder builds the full start message. It decides where the correlation id goes.
type StartBuilder func(in StartInput) *Message

// SetPayload places the invocation payload onto the base start message.
type SetPayload func(base *Message, payload any) *Message

// Extract pulls a value out of a settling message.
type Extract func(msg *Message) any

// Predicate reports whether a message satisfies a resolve or reject condition.
type Predicate func(msg *Message) bool

// Start is either a message type tag or a StartBuilder.
type Start struct {
	tag   string
	build StartBuilder
}

// StartTag starts an operation by dispatching a message of the given type.
func StartTag(tag string) Start {
	return Start{tag: tag}
}

// StartWith starts an operation by dispatching whatever fn returns.
func StartWith(fn StartBuilder) Start {
	return Start{build: fn}
}

// IsZero reports whether neither a tag nor a builder was given.
func (s Start) IsZero() bool {
	return s.tag == "" && s.build == nil
}

// Build produces the start message for one invocation. set is only used for tags.
func (s Start) Build(id string, payload any, set SetPayload) *Message {
	if s.build != nil {
		return s.build(StartInput{Payload: payload, Meta: Meta{ID: id}})
	}
	if set == nil {
		set = DefaultSetPayload
	}
	return set(&Message{Type: s.tag, Meta: &Meta{ID: id}}, payload)
}

func (s Start) String() string {
	if s.build != nil {
		return "start(func)"
	}
	return s.tag
}

type matcherKind uint8

const (
	matchNone matcherKind = iota
	matchTag
	matchPredicate
)

// Matcher is either a message type tag or a Predicate.
// The zero Matcher matches nothing.
type Matcher struct {
	kind matcherKind
	tag  string
	pred Predicate
}

// ByTag matches messages whose Type equals tag.
func ByTag(tag string) Matcher {
	if tag == "" {
		return Matcher{}
	}
	return Matcher{kind: matchTag, tag: tag}
}

// ByPredicate matches messages for which fn returns true.
func ByPredicate(fn Predicate) Matcher {
	if fn == nil {
		return Matcher{}
	}
	return Matcher{kind: matchPredicate, pred: fn}
}

// Match tests msg against the matcher.
func (m Matcher) Match(msg *Message) bool {
	if msg == nil {
		return false
	}
	switch m.kind {
	case matchTag:
		return msg.Type == m.tag
	case matchPredicate:
		return m.pred(msg)
	}
	return false
}

// IsZero reports whether the matcher can never match.
func (m Matcher) IsZero() bool {
	return m.kind == matchNone
}

func (m Matcher) String() string {
	switch m.kind {
	case matchTag:
		return m.tag
	case matchPredicate:
		return "predicate"
	}
	return "none"
}

// Config declares how one async function starts and settles.
type Config struct {
	Start      Start
	Resolve    Matcher
	Reject     Matcher
	SetPayload SetPayload // default: DefaultSetPayload
	GetPayload Extract    // default: DefaultGetPayload
	GetError   Extract    // default: DefaultGetError
}

// DefaultSetPayload copies base and sets its Payload.
func DefaultSetPayload(base *Message, payload any) *Message {
	out := *base
	out.Payload = payload
	return &out
}

// DefaultGetPayload returns msg.Payload.
func DefaultGetPayload(msg *Message) any { return msg.Payload }

// DefaultGetError returns msg.Payload.
func DefaultGetError(msg *Message) any { return msg.Payload }

// Result holds the settled outcome of one invocation.
type Result struct {
	Data any
	Err  error
}

// RejectedError is the failure delivered when a reject message matches.
type RejectedError struct {
	Type   string // Type of the message that rejected the operation
	Reason any    // Value extracted by Config.GetError
}

func (e *RejectedError) Error() string {
	if err, ok := e.Reason.(error); ok {
		return err.Error()
	}
	if e.Type == "" {
		return fmt.Sprintf("rejected: %v", e.Reason)
	}
	return fmt.Sprintf("rejected by %s: %v", e.Type, e.Reason)
}

// Unwrap exposes Reason when it is itself an error.
func (e *RejectedError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}
	return nil
}

// InitType is the message type a store sends its reducer on creation.
const InitType = "@@relay/INIT"

// Default configuration values.
const (
	DefaultMaxWorkers = 64
	DefaultIDSize     = 11
	DefaultIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)
