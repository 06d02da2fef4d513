// Package engine is the public face of a protocol run.
//
// ARCHITECTURE:
//
// A ProtocolEngine wires one state.Store, one action.Dispatcher and one
// execution.QueueWorker together. Callers enqueue commands and issue run
// control (Play, Pause, Stop) from any goroutine; the worker executes
// commands one at a time on its own goroutine.
//
// Action Flow:
// 1. AddCommand dispatches QueueCommand; the store appends a QUEUED command
// 2. The worker wakes on the store's change channel and picks the next id
// 3. The executor dispatches RUNNING, calls the handlers, then dispatches
//    SUCCEEDED or FailCommand
// 4. Reactors registered with WithReactors see every action after the store
//
// Stop is a one-way latch. The in-flight command finishes, then the worker
// exits and never restarts.
package engine
