package execution

import (
	"context"

	"github.com/roach88/labengine/internal/commands"
	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/labware"
	"github.com/roach88/labengine/internal/state"
)

// EquipmentHandler loads labware, pipettes and modules.
type EquipmentHandler struct {
	state    StateStore
	hardware hardware.API
	library  *labware.Library
	ids      IDGenerator
}

// LoadLabware resolves the definition (definitions added during the run
// take precedence over the built-in library) and links the newest
// applicable offset. A caller-supplied id that is already loaded is
// rejected.
func (h *EquipmentHandler) LoadLabware(_ context.Context, loadName, namespace string, version int, location ir.LabwareLocation, labwareID string) (commands.LoadedLabwareData, error) {
	view := h.state.View()

	uri := ir.LabwareURI(namespace, loadName, version)
	def, err := view.Labware.DefinitionByURI(uri)
	if err != nil {
		def, err = h.library.Get(namespace, loadName, version)
		if err != nil {
			return commands.LoadedLabwareData{}, err
		}
	}

	if err := validateLocation(view, location); err != nil {
		return commands.LoadedLabwareData{}, err
	}

	if labwareID == "" {
		labwareID = h.ids.Generate()
	} else if _, err := view.Labware.Get(labwareID); err == nil {
		return commands.LoadedLabwareData{}, ir.NewEngineError(ir.ErrCodeLabwareAlreadyLoaded, "labware %s is already loaded", labwareID)
	}

	var offsetID *string
	if offset, ok := view.Labware.FindApplicableOffset(uri, location); ok {
		id := offset.ID
		offsetID = &id
	}

	return commands.LoadedLabwareData{
		LabwareID:  labwareID,
		Definition: def,
		OffsetID:   offsetID,
	}, nil
}

func (h *EquipmentHandler) LoadPipette(ctx context.Context, name ir.PipetteName, mount ir.MountType, pipetteID string) (string, error) {
	if _, ok := ir.LookupPipetteSpec(name); !ok {
		return "", ir.NewEngineError(ir.ErrCodeFailedToLoadPipette, "unknown pipette model %s", name)
	}
	if !mount.Valid() {
		return "", ir.NewEngineError(ir.ErrCodeFailedToLoadPipette, "unknown mount %q", mount)
	}
	if err := h.hardware.CacheInstrument(ctx, mount, name); err != nil {
		return "", err
	}
	if pipetteID == "" {
		pipetteID = h.ids.Generate()
	}
	return pipetteID, nil
}

func (h *EquipmentHandler) LoadModule(_ context.Context, model ir.ModuleModel, location ir.LabwareLocation, moduleID string) (string, error) {
	if !model.Valid() {
		return "", ir.NewEngineError(ir.ErrCodeModuleDoesNotExist, "unknown module model %s", model)
	}
	if location.IsModule() {
		return "", ir.NewEngineError(ir.ErrCodeInvalidCommandRequest, "modules must be loaded into a deck slot")
	}
	if _, err := h.state.View().Labware.SlotPosition(location.SlotName); err != nil {
		return "", err
	}
	if moduleID == "" {
		moduleID = h.ids.Generate()
	}
	return moduleID, nil
}

func validateLocation(view state.View, location ir.LabwareLocation) error {
	if location.IsModule() {
		_, err := view.Modules.Get(location.ModuleID)
		return err
	}
	_, err := view.Labware.SlotPosition(location.SlotName)
	return err
}
