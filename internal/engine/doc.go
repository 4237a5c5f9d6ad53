// Package engine implements the model registry and action processors.
//
// The Store is the registry/context object: models are registered on it,
// every action creator it derives dispatches through its pipeline, and its
// base dispatch applies reducers to the model slices it owns. There is no
// process-wide state; create a Store with New and tear it down with Close.
//
// ARCHITECTURE:
//
// Dispatch Flow:
//  1. An action creator (processor) issues one or more dispatches
//  2. Store.Dispatch stamps the action with a logical seq and walks the
//     interceptor pipeline under the dispatch lock
//  3. The base dispatch either submits an effect intent to the effect runner
//     or applies the action's reducers
//  4. Reducers run for every model, in registration order, that has a reducer
//     for the action type: the owning model and any subscribers
//  5. A model whose slice changed gets its revision bumped
//
// Processors:
//   - exec: async call with start/success/error lifecycle dispatches
//   - effect: intent dispatched to the effect runner, result via watch future
//   - plain: callback or static data, immediate updates for returned values
//
// CRITICAL PATTERNS:
//
// Serial Dispatch:
// One dispatch runs at a time. Interceptors and reducers run to completion
// before the next dispatch starts, so subscription reducers fire within the
// dispatch that delivered their action type.
//
// Logical Clock:
// Dispatched actions are stamped from Clock.Next(). Journal order and replay
// use seq, never wall-clock time.
//
// Pure Reducers:
// Reducers receive a private draft. A reducer must not call back into the
// Store; doing so from inside a dispatch deadlocks.
package engine
