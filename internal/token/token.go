// Package token encodes the routing token embedded in Discord component
// custom IDs. The bot keeps no per-interaction state server-side; everything
// needed to route a callback travels inside the custom ID itself.
package token

import (
	"encoding/json"
	"fmt"
)

// MaxEncodedLen is Discord's custom ID size limit. Encode fails fast rather
// than letting the API reject the component at submission time.
const MaxEncodedLen = 100

// Token routes a component interaction back to its owning handler.
// Component names the handler; Action is an opaque string whose meaning the
// handler defines (an enum label, a numeric id, a composite key).
type Token struct {
	Component string `json:"c"`
	Action    string `json:"a"`
}

// ErrTooLong is returned by Encode when the encoded token would not fit in a
// custom ID field.
var ErrTooLong = fmt.Errorf("encoded token exceeds %d bytes", MaxEncodedLen)

// MalformedTokenError indicates a custom ID that is not a well-formed token
// encoding. Under normal operation this is a programmer or data error, never
// something a user can cause.
type MalformedTokenError struct {
	Raw string
	Err error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("malformed token %q", e.Raw)
}

func (e *MalformedTokenError) Unwrap() error {
	return e.Err
}

// Encode serializes a token into a custom ID string. It is deterministic and
// side-effect free; Decode(Encode(t)) returns t exactly.
func Encode(t Token) (string, error) {
	if t.Component == "" {
		return "", fmt.Errorf("token component name is required")
	}

	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}

	if len(data) > MaxEncodedLen {
		return "", ErrTooLong
	}

	return string(data), nil
}

// Decode parses a custom ID string back into a token. It returns a
// *MalformedTokenError if the string is not valid JSON or a required field
// is missing.
func Decode(s string) (Token, error) {
	// Pointer fields distinguish a missing key from an empty value.
	var raw struct {
		Component *string `json:"c"`
		Action    *string `json:"a"`
	}

	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Token{}, &MalformedTokenError{Raw: s, Err: err}
	}

	if raw.Component == nil || *raw.Component == "" {
		return Token{}, &MalformedTokenError{Raw: s, Err: fmt.Errorf("missing component name")}
	}
	if raw.Action == nil {
		return Token{}, &MalformedTokenError{Raw: s, Err: fmt.Errorf("missing action id")}
	}

	return Token{Component: *raw.Component, Action: *raw.Action}, nil
}
