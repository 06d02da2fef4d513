package ir

// EngineStatus is the derived run-level status. It is never stored; it is
// always recomputed from command state.
type EngineStatus string

const (
	EngineIdle           EngineStatus = "idle"
	EngineRunning        EngineStatus = "running"
	EnginePauseRequested EngineStatus = "pause-requested"
	EnginePaused         EngineStatus = "paused"
	EngineStopRequested  EngineStatus = "stop-requested"
	EngineStopped        EngineStatus = "stopped"
	EngineFailed         EngineStatus = "failed"
	EngineSucceeded      EngineStatus = "succeeded"
)

// IsTerminal reports whether no further status change is possible
// without new commands.
func (s EngineStatus) IsTerminal() bool {
	switch s {
	case EngineStopped, EngineFailed, EngineSucceeded:
		return true
	}
	return false
}
