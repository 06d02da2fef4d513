package state

import (
	"slices"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
)

// CurrentWell is the last well a pipette moved to.
type CurrentWell struct {
	PipetteID string
	LabwareID string
	WellName  string
}

// AttachedTip identifies the tip on a pipette and where it came from.
type AttachedTip struct {
	TiprackID string
	WellName  string
}

type pipetteRuntime struct {
	tip       *AttachedTip
	aspirated float64
}

// PipetteState holds loaded pipettes and their runtime state, derived from
// succeeded commands.
type PipetteState struct {
	order   []string
	byID    map[string]ir.LoadedPipette
	runtime map[string]pipetteRuntime

	currentWell *CurrentWell
}

func newPipetteState() PipetteState {
	return PipetteState{
		byID:    map[string]ir.LoadedPipette{},
		runtime: map[string]pipetteRuntime{},
	}
}

func (s PipetteState) handle(a action.Action) PipetteState {
	update, ok := a.(action.UpdateCommand)
	if !ok || update.Command.Status != ir.CommandSucceeded {
		return s
	}
	cmd := update.Command

	switch params := cmd.Params.(type) {
	case *ir.LoadPipetteParams:
		result, ok := cmd.Result.(*ir.LoadPipetteResult)
		if !ok {
			return s
		}
		if _, exists := s.byID[result.PipetteID]; !exists {
			s.order = append(slices.Clip(s.order), result.PipetteID)
		}
		s.byID = withEntry(s.byID, result.PipetteID, ir.LoadedPipette{
			ID:          result.PipetteID,
			PipetteName: params.PipetteName,
			Mount:       params.Mount,
		})
		s.runtime = withEntry(s.runtime, result.PipetteID, pipetteRuntime{})

	case *ir.MoveToWellParams:
		s.currentWell = currentWellOf(params.WellTarget)

	case *ir.PickUpTipParams:
		s.currentWell = currentWellOf(params.WellTarget)
		rt := s.runtime[params.PipetteID]
		rt.tip = &AttachedTip{TiprackID: params.LabwareID, WellName: params.WellName}
		rt.aspirated = 0
		s.runtime = withEntry(s.runtime, params.PipetteID, rt)

	case *ir.DropTipParams:
		s.currentWell = currentWellOf(params.WellTarget)
		s.runtime = withEntry(s.runtime, params.PipetteID, pipetteRuntime{})

	case *ir.AspirateParams:
		s.currentWell = currentWellOf(params.WellTarget)
		if result, ok := cmd.Result.(*ir.AspirateResult); ok {
			rt := s.runtime[params.PipetteID]
			rt.aspirated += result.Volume
			s.runtime = withEntry(s.runtime, params.PipetteID, rt)
		}

	case *ir.DispenseParams:
		s.currentWell = currentWellOf(params.WellTarget)
		if result, ok := cmd.Result.(*ir.DispenseResult); ok {
			rt := s.runtime[params.PipetteID]
			rt.aspirated = max(0, rt.aspirated-result.Volume)
			s.runtime = withEntry(s.runtime, params.PipetteID, rt)
		}

	case *ir.MoveRelativeParams, *ir.HomeParams:
		s.currentWell = nil
	}
	return s
}

func currentWellOf(t ir.WellTarget) *CurrentWell {
	return &CurrentWell{PipetteID: t.PipetteID, LabwareID: t.LabwareID, WellName: t.WellName}
}

// PipetteView is a read-only view of PipetteState.
type PipetteView struct {
	state PipetteState
}

// Get returns a loaded pipette by id.
func (v PipetteView) Get(pipetteID string) (ir.LoadedPipette, error) {
	p, ok := v.state.byID[pipetteID]
	if !ok {
		return ir.LoadedPipette{}, ir.NewEngineError(ir.ErrCodePipetteDoesNotExist, "pipette %s not found", pipetteID)
	}
	return p, nil
}

// All returns every loaded pipette in load order.
func (v PipetteView) All() []ir.LoadedPipette {
	out := make([]ir.LoadedPipette, 0, len(v.state.order))
	for _, id := range v.state.order {
		out = append(out, v.state.byID[id])
	}
	return out
}

// ByMount returns the most recently loaded pipette on a mount.
func (v PipetteView) ByMount(mount ir.MountType) (ir.LoadedPipette, bool) {
	for i := len(v.state.order) - 1; i >= 0; i-- {
		p := v.state.byID[v.state.order[i]]
		if p.Mount == mount {
			return p, true
		}
	}
	return ir.LoadedPipette{}, false
}

// CurrentWell returns the last well any pipette moved to, if the last
// movement targeted a well.
func (v PipetteView) CurrentWell() (CurrentWell, bool) {
	if v.state.currentWell == nil {
		return CurrentWell{}, false
	}
	return *v.state.currentWell, true
}

// AttachedTip returns the tip on a pipette, if any.
func (v PipetteView) AttachedTip(pipetteID string) (AttachedTip, bool) {
	rt := v.state.runtime[pipetteID]
	if rt.tip == nil {
		return AttachedTip{}, false
	}
	return *rt.tip, true
}

// AspiratedVolume returns the liquid volume currently held by a pipette.
func (v PipetteView) AspiratedVolume(pipetteID string) float64 {
	return v.state.runtime[pipetteID].aspirated
}

// Spec returns the static spec of a loaded pipette.
func (v PipetteView) Spec(pipetteID string) (ir.PipetteSpec, error) {
	p, err := v.Get(pipetteID)
	if err != nil {
		return ir.PipetteSpec{}, err
	}
	spec, ok := ir.LookupPipetteSpec(p.PipetteName)
	if !ok {
		return ir.PipetteSpec{}, ir.NewEngineError(ir.ErrCodeFailedToLoadPipette, "no spec for pipette model %s", p.PipetteName)
	}
	return spec, nil
}
