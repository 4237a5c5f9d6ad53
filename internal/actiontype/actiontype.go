// Package actiontype encodes and decodes canonical action-type strings.
//
// An action type is "model/action" or "model/action/status". The separator and
// segment order are fixed: reducer tables, subscriptions and the journal all
// key on these strings, so changing either breaks Decode for stored data.
//
// No validation of names is performed. Callers must keep the separator out of
// model and action names.
package actiontype

import (
	"fmt"
	"strings"
)

// Separator joins the segments of an action type.
const Separator = "/"

// Status is the lifecycle stage of an async action.
type Status string

const (
	// StatusStart is dispatched before an exec call is issued.
	StatusStart Status = "start"
	// StatusSuccess is dispatched when an exec call settles with a value.
	StatusSuccess Status = "success"
	// StatusError is dispatched when an exec call fails.
	StatusError Status = "error"
)

// Valid reports whether s is one of the three lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusStart, StatusSuccess, StatusError:
		return true
	}
	return false
}

// Statuses lists the lifecycle statuses in dispatch order.
var Statuses = []Status{StatusStart, StatusSuccess, StatusError}

// Encode joins model, action and an optional status.
// An empty status is omitted; only the first status is used.
func Encode(model, action string, status ...Status) string {
	if len(status) > 0 && status[0] != "" {
		return model + Separator + action + Separator + string(status[0])
	}
	return model + Separator + action
}

// Decode returns the model and action segments of an action type.
// The status segment, if any, is dropped.
func Decode(actionType string) (model, action string) {
	parts := strings.SplitN(actionType, Separator, 3)
	model = parts[0]
	if len(parts) > 1 {
		action = parts[1]
	}
	return model, action
}

// StatusOf returns the lifecycle status of an action type, or "" when the
// type has no (known) status segment.
func StatusOf(actionType string) Status {
	parts := strings.SplitN(actionType, Separator, 3)
	if len(parts) < 3 {
		return ""
	}
	if s := Status(parts[2]); s.Valid() {
		return s
	}
	return ""
}

// ToAction returns the dotted action name ("model.action") used by effect
// intents and put({intent}) normalisation.
func ToAction(model, action string) string {
	return model + "." + action
}

// FromAction splits a dotted action name. ok is false when name has no dot.
func FromAction(name string) (model, action string, ok bool) {
	model, action, ok = strings.Cut(name, ".")
	return model, action, ok
}

// ParseKey parses a subscription key "model.action[.status]".
func ParseKey(key string) (model, action string, status Status, err error) {
	parts := strings.Split(key, ".")
	switch len(parts) {
	case 2:
		model, action = parts[0], parts[1]
	case 3:
		model, action, status = parts[0], parts[1], Status(parts[2])
		if !status.Valid() {
			return "", "", "", fmt.Errorf("subscription key %q: unknown status %q", key, parts[2])
		}
	default:
		return "", "", "", fmt.Errorf("subscription key %q: want model.action[.status]", key)
	}
	if model == "" || action == "" {
		return "", "", "", fmt.Errorf("subscription key %q: empty model or action", key)
	}
	return model, action, status, nil
}

// EncodeKey parses a subscription key and returns its canonical action type.
func EncodeKey(key string) (string, error) {
	model, action, status, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return Encode(model, action, status), nil
}
