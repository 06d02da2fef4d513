package state

import (
	"fmt"
	"slices"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/labware"
)

// FixedLabware is labware present on the deck before any command runs.
type FixedLabware struct {
	ID         string
	Location   ir.LabwareLocation
	Definition ir.LabwareDefinition
}

// LabwareState holds loaded labware, registered offsets and known
// definitions.
//
// INVARIANTS:
//   - a LoadedLabware's OffsetID, when set, is a key of offsetsByID
//   - offset ids are never reused; offsets are immutable once added
type LabwareState struct {
	labwareOrder []string
	labwareByID  map[string]ir.LoadedLabware

	offsetOrder []string
	offsetsByID map[string]ir.LabwareOffset

	definitionsByURI map[string]ir.LabwareDefinition

	deck *labware.Deck
}

func newLabwareState(deck *labware.Deck, fixed []FixedLabware) LabwareState {
	s := LabwareState{
		labwareByID:      map[string]ir.LoadedLabware{},
		offsetsByID:      map[string]ir.LabwareOffset{},
		definitionsByURI: map[string]ir.LabwareDefinition{},
		deck:             deck,
	}
	for _, f := range fixed {
		uri := f.Definition.URI()
		s.definitionsByURI[uri] = f.Definition
		s.labwareByID[f.ID] = ir.LoadedLabware{
			ID:            f.ID,
			LoadName:      f.Definition.Parameters.LoadName,
			DefinitionURI: uri,
			Location:      f.Location,
		}
		s.labwareOrder = append(s.labwareOrder, f.ID)
	}
	return s
}

func (s LabwareState) handle(a action.Action) LabwareState {
	switch a := a.(type) {
	case action.UpdateCommand:
		return s.handleCommand(a.Command)

	case action.AddLabwareOffset:
		if _, exists := s.offsetsByID[a.OffsetID]; exists {
			panic(fmt.Sprintf("state: labware offset %s already added", a.OffsetID))
		}
		s.offsetOrder = append(slices.Clip(s.offsetOrder), a.OffsetID)
		s.offsetsByID = withEntry(s.offsetsByID, a.OffsetID, ir.LabwareOffset{
			ID:            a.OffsetID,
			CreatedAt:     a.CreatedAt,
			DefinitionURI: a.Request.DefinitionURI,
			Location:      a.Request.Location,
			Vector:        a.Request.Vector,
		})
	}
	return s
}

func (s LabwareState) handleCommand(cmd ir.Command) LabwareState {
	switch result := cmd.Result.(type) {
	case *ir.LoadLabwareResult:
		if result.OffsetID != nil {
			if _, ok := s.offsetsByID[*result.OffsetID]; !ok {
				panic(fmt.Sprintf("state: labware %s references unknown offset %s", result.LabwareID, *result.OffsetID))
			}
		}
		params, ok := cmd.Params.(*ir.LoadLabwareParams)
		if !ok {
			panic(fmt.Sprintf("state: command %s has loadLabware result but %T params", cmd.ID, cmd.Params))
		}

		uri := result.Definition.URI()
		if _, exists := s.labwareByID[result.LabwareID]; !exists {
			s.labwareOrder = append(slices.Clip(s.labwareOrder), result.LabwareID)
		}
		s.labwareByID = withEntry(s.labwareByID, result.LabwareID, ir.LoadedLabware{
			ID:            result.LabwareID,
			LoadName:      result.Definition.Parameters.LoadName,
			DefinitionURI: uri,
			Location:      params.Location,
			OffsetID:      result.OffsetID,
		})
		s.definitionsByURI = withEntry(s.definitionsByURI, uri, result.Definition)

	case *ir.AddLabwareDefinitionResult:
		params, ok := cmd.Params.(*ir.AddLabwareDefinitionParams)
		if !ok {
			panic(fmt.Sprintf("state: command %s has addLabwareDefinition result but %T params", cmd.ID, cmd.Params))
		}
		s.definitionsByURI = withEntry(s.definitionsByURI, result.URI(), params.Definition)
	}
	return s
}

// LabwareView is a read-only view of LabwareState.
type LabwareView struct {
	state LabwareState
}

// Get returns loaded labware by id.
func (v LabwareView) Get(labwareID string) (ir.LoadedLabware, error) {
	lw, ok := v.state.labwareByID[labwareID]
	if !ok {
		return ir.LoadedLabware{}, ir.NewEngineError(ir.ErrCodeLabwareDoesNotExist, "labware %s not found", labwareID)
	}
	return lw, nil
}

// All returns every loaded labware in load order.
func (v LabwareView) All() []ir.LoadedLabware {
	out := make([]ir.LoadedLabware, 0, len(v.state.labwareOrder))
	for _, id := range v.state.labwareOrder {
		out = append(out, v.state.labwareByID[id])
	}
	return out
}

// Definition returns the definition of loaded labware.
func (v LabwareView) Definition(labwareID string) (ir.LabwareDefinition, error) {
	lw, err := v.Get(labwareID)
	if err != nil {
		return ir.LabwareDefinition{}, err
	}
	return v.DefinitionByURI(lw.DefinitionURI)
}

// DefinitionByURI returns a definition known to this run.
func (v LabwareView) DefinitionByURI(uri string) (ir.LabwareDefinition, error) {
	def, ok := v.state.definitionsByURI[uri]
	if !ok {
		return ir.LabwareDefinition{}, ir.NewEngineError(ir.ErrCodeLabwareDefinitionDoesNotExist,
			"labware definition for matching %s not found", uri)
	}
	return def, nil
}

// HasDefinition reports whether uri was registered or loaded in this run.
func (v LabwareView) HasDefinition(uri string) bool {
	_, ok := v.state.definitionsByURI[uri]
	return ok
}

// Location returns where loaded labware sits.
func (v LabwareView) Location(labwareID string) (ir.LabwareLocation, error) {
	lw, err := v.Get(labwareID)
	if err != nil {
		return ir.LabwareLocation{}, err
	}
	return lw.Location, nil
}

// WellDefinition returns a single well of loaded labware.
func (v LabwareView) WellDefinition(labwareID, wellName string) (ir.WellDefinition, error) {
	def, err := v.Definition(labwareID)
	if err != nil {
		return ir.WellDefinition{}, err
	}
	well, ok := def.Wells[wellName]
	if !ok {
		return ir.WellDefinition{}, ir.NewEngineError(ir.ErrCodeWellDoesNotExist,
			"%s does not exist in %s", wellName, labwareID)
	}
	return well, nil
}

// Wells returns well names in column-major order.
func (v LabwareView) Wells(labwareID string) ([]string, error) {
	def, err := v.Definition(labwareID)
	if err != nil {
		return nil, err
	}
	var wells []string
	for _, col := range def.Ordering {
		wells = append(wells, col...)
	}
	return wells, nil
}

// IsTiprack reports whether loaded labware is a tip rack.
func (v LabwareView) IsTiprack(labwareID string) (bool, error) {
	def, err := v.Definition(labwareID)
	if err != nil {
		return false, err
	}
	return def.Parameters.IsTiprack, nil
}

// TipLength returns the tip length of a tip rack.
func (v LabwareView) TipLength(labwareID string) (float64, error) {
	def, err := v.Definition(labwareID)
	if err != nil {
		return 0, err
	}
	if def.Parameters.TipLength == nil {
		return 0, ir.NewEngineError(ir.ErrCodeLabwareIsNotTiprack, "labware %s has no tip length defined", labwareID)
	}
	return *def.Parameters.TipLength, nil
}

// HasQuirk reports whether loaded labware's definition lists quirk.
func (v LabwareView) HasQuirk(labwareID, quirk string) (bool, error) {
	def, err := v.Definition(labwareID)
	if err != nil {
		return false, err
	}
	return slices.Contains(def.Parameters.Quirks, quirk), nil
}

// Dimensions returns the bounding box of loaded labware.
func (v LabwareView) Dimensions(labwareID string) (ir.Dimensions, error) {
	def, err := v.Definition(labwareID)
	if err != nil {
		return ir.Dimensions{}, err
	}
	d := def.Dimensions
	return ir.Dimensions{X: d.XDimension, Y: d.YDimension, Z: d.ZDimension}, nil
}

// Offset returns a registered offset by id.
func (v LabwareView) Offset(offsetID string) (ir.LabwareOffset, error) {
	off, ok := v.state.offsetsByID[offsetID]
	if !ok {
		return ir.LabwareOffset{}, ir.NewEngineError(ir.ErrCodeLabwareOffsetDoesNotExist, "labware offset %s not found", offsetID)
	}
	return off, nil
}

// Offsets returns every registered offset in the order added.
func (v LabwareView) Offsets() []ir.LabwareOffset {
	out := make([]ir.LabwareOffset, 0, len(v.state.offsetOrder))
	for _, id := range v.state.offsetOrder {
		out = append(out, v.state.offsetsByID[id])
	}
	return out
}

// OffsetVector returns the calibration vector applied to loaded labware,
// or the zero vector when none is linked.
func (v LabwareView) OffsetVector(labwareID string) (ir.LabwareOffsetVector, error) {
	lw, err := v.Get(labwareID)
	if err != nil {
		return ir.LabwareOffsetVector{}, err
	}
	if lw.OffsetID == nil {
		return ir.LabwareOffsetVector{}, nil
	}
	return v.state.offsetsByID[*lw.OffsetID].Vector, nil
}

// FindApplicableOffset returns the most recently added offset matching
// the definition URI and location.
func (v LabwareView) FindApplicableOffset(definitionURI string, location ir.LabwareLocation) (ir.LabwareOffset, bool) {
	for i := len(v.state.offsetOrder) - 1; i >= 0; i-- {
		candidate := v.state.offsetsByID[v.state.offsetOrder[i]]
		if candidate.DefinitionURI == definitionURI && candidate.Location == location {
			return candidate, true
		}
	}
	return ir.LabwareOffset{}, false
}

// SlotPosition returns the position of a deck slot.
func (v LabwareView) SlotPosition(slot ir.DeckSlotName) (ir.Point, error) {
	return v.state.deck.SlotPosition(slot)
}

// OccupantOf returns the id of the labware sitting directly in a slot.
func (v LabwareView) OccupantOf(slot ir.DeckSlotName) (string, bool) {
	for _, id := range v.state.labwareOrder {
		if v.state.labwareByID[id].Location.SlotName == slot {
			return id, true
		}
	}
	return "", false
}
