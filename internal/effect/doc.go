// Package effect runs generator-style action bodies as an explicit
// interpreter over a small effect protocol.
//
// A body never touches the store directly. It yields tagged effects and is
// resumed with their results:
//
//   - Put dispatches an action-like value on behalf of the owning model
//   - Select reads a path from the owning model's state
//   - Call runs a blocking function (a request, a timer) and resumes with its result
//
// Bodies are expressed either as a hand-written state machine (GeneratorFunc),
// as straight-line Go code over a Yield function (Coroutine), or as a fixed
// list of effects (Script, used by compiled model files).
//
// The Runner owns one serial worker per model: effects for a single model run
// one at a time in submission order, while different models proceed
// independently. Callers wait on watch futures keyed by canonical action type.
package effect
