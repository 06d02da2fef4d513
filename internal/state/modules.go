package state

import (
	"slices"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
)

// ModuleState holds loaded hardware modules.
type ModuleState struct {
	order []string
	byID  map[string]ir.LoadedModule
}

func newModuleState() ModuleState {
	return ModuleState{byID: map[string]ir.LoadedModule{}}
}

func (s ModuleState) handle(a action.Action) ModuleState {
	update, ok := a.(action.UpdateCommand)
	if !ok {
		return s
	}
	result, ok := update.Command.Result.(*ir.LoadModuleResult)
	if !ok {
		return s
	}
	params, ok := update.Command.Params.(*ir.LoadModuleParams)
	if !ok {
		return s
	}
	if _, exists := s.byID[result.ModuleID]; !exists {
		s.order = append(slices.Clip(s.order), result.ModuleID)
	}
	s.byID = withEntry(s.byID, result.ModuleID, ir.LoadedModule{
		ID:       result.ModuleID,
		Model:    result.Model,
		Location: params.Location,
	})
	return s
}

// ModuleView is a read-only view of ModuleState.
type ModuleView struct {
	state ModuleState
}

// Get returns a loaded module by id.
func (v ModuleView) Get(moduleID string) (ir.LoadedModule, error) {
	m, ok := v.state.byID[moduleID]
	if !ok {
		return ir.LoadedModule{}, ir.NewEngineError(ir.ErrCodeModuleDoesNotExist, "module %s not found", moduleID)
	}
	return m, nil
}

// All returns every loaded module in load order.
func (v ModuleView) All() []ir.LoadedModule {
	out := make([]ir.LoadedModule, 0, len(v.state.order))
	for _, id := range v.state.order {
		out = append(out, v.state.byID[id])
	}
	return out
}

// InSlot returns the module occupying a deck slot.
func (v ModuleView) InSlot(slot ir.DeckSlotName) (ir.LoadedModule, bool) {
	for _, id := range v.state.order {
		if m := v.state.byID[id]; m.Location.SlotName == slot {
			return m, true
		}
	}
	return ir.LoadedModule{}, false
}
