// Copyright (c) 2026 Kiscz, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package mc is the low level memcached message representation shared by the
// proxy core and route handles. The wire codec that produces these messages
// lives outside this module; the core only verifies operational
// well-formedness.
package mc

import (
	"fmt"
	"strings"
)

// MaxKeyLength is the longest key a client request may carry, matching the
// memcached protocol limit.
const MaxKeyLength = 250

// Message is a parsed memcached request or reply.
type Message struct {
	// Op names the operation. Replies echo the op of the request they
	// answer.
	Op Op

	// Key addresses the cache item for keyed operations. For the stats op
	// it optionally carries the stats group argument.
	Key string

	// Value is the item payload on storage requests and replies to
	// retrieval requests. Error replies carry a human-readable message
	// here.
	Value []byte

	Flags   uint32
	Exptime int32
	Delta   uint64
	Cas     uint64

	// Result is only meaningful on replies.
	Result Result
}

// Clone returns a deep copy of the message. Route handles receive a clone of
// the client request so they may rewrite it freely.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Value != nil {
		c.Value = make([]byte, len(m.Value))
		copy(c.Value, m.Value)
	}
	return &c
}

// NewReply builds a reply message with the given op, result and value text.
func NewReply(op Op, result Result, value string) *Message {
	r := &Message{Op: op, Result: result}
	if value != "" {
		r.Value = []byte(value)
	}
	return r
}

type invalidRequestError struct {
	reason string
}

func (e invalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.reason)
}

// InvalidRequestErrorf builds the error returned for requests that fail
// operational validation.
func InvalidRequestErrorf(format string, args ...interface{}) error {
	return invalidRequestError{reason: fmt.Sprintf(format, args...)}
}

// IsInvalidRequest reports whether err was produced by request validation.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// ValidateRequest verifies operational well-formedness of a client request.
// The codec is responsible for wire-level validation before building the
// message.
func ValidateRequest(m *Message) error {
	if m == nil {
		return InvalidRequestErrorf("nil message")
	}
	if _, ok := opToName[m.Op]; !ok || m.Op == OpUnknown {
		return InvalidRequestErrorf("unknown op %d", m.Op)
	}
	if m.Op.IsKeyed() {
		if m.Key == "" {
			return InvalidRequestErrorf("%s requires a key", m.Op)
		}
		if len(m.Key) > MaxKeyLength {
			return InvalidRequestErrorf("key exceeds %d bytes", MaxKeyLength)
		}
		if strings.ContainsAny(m.Key, " \t\r\n") {
			return InvalidRequestErrorf("key contains whitespace")
		}
	}
	return nil
}
