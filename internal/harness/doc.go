// Package harness drives one protocol run end to end.
//
// Run builds a ProtocolEngine over the given hardware, starts the run's
// reactors, enqueues the protocol's offsets and commands, plays, waits for
// completion and stops. Cancelling the context stops the run cleanly: the
// in-flight command finishes and nothing else starts.
//
// Golden traces (AssertGolden) capture the command outcome of a run for
// regression tests. To regenerate golden files, run:
//
//	go test ./internal/... -update
package harness
