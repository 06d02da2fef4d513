// Package ir provides the protocol intermediate representation for the engine.
//
// A protocol, whatever language it was authored in, reaches the engine as a
// linear sequence of command requests. This package defines those requests,
// the Command records they become once queued, the equipment records created
// by load commands, and the error taxonomy shared by every other package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - JSON field names use camelCase to match the robot HTTP API
//   - Commands are values; params and results are treated as immutable once set
//   - The command type tag is closed: NewParams rejects unknown tags
package ir
