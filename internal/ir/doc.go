// Package ir provides the wire-level types shared by every seed package.
//
// This package contains type definitions and value helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// action contract (Action, Payload) and the state value model (State) the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - An action type is a plain string produced by package actiontype
//   - State slices are map[string]any trees; reducers always receive a deep copy
//   - Canonical JSON (RFC 8785 key ordering, NFC strings) is the only
//     serialization used for journal hashing and golden traces
package ir
