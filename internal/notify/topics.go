package notify

import "fmt"

// Topics builds the MQTT topics used by labrun under a common prefix.
//
//	topics := notify.Topics{Prefix: "labengine"}
//	topics.RunStatus("r1") // labengine/runs/r1/status
type Topics struct {
	Prefix string
}

// RunStatus carries the retained engine status of a run.
func (t Topics) RunStatus(runID string) string {
	return fmt.Sprintf("%s/runs/%s/status", t.Prefix, runID)
}

// Command carries status transitions of one command.
func (t Topics) Command(runID, commandID string) string {
	return fmt.Sprintf("%s/runs/%s/commands/%s", t.Prefix, runID, commandID)
}

// Presence carries the retained online/offline state of a labrun client.
func (t Topics) Presence(clientID string) string {
	return fmt.Sprintf("%s/clients/%s/status", t.Prefix, clientID)
}
