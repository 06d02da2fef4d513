package ir

import "fmt"

// LoadLabwareParams loads a labware definition into a location.
type LoadLabwareParams struct {
	Location  LabwareLocation `json:"location"`
	LoadName  string          `json:"loadName"`
	Namespace string          `json:"namespace"`
	Version   int             `json:"version"`
	LabwareID string          `json:"labwareId,omitempty"`
}

func (*LoadLabwareParams) CommandType() CommandType { return CommandTypeLoadLabware }

func (p *LoadLabwareParams) Validate() error {
	if p.LoadName == "" {
		return ValidationError{Field: "loadName", Message: "required"}
	}
	if p.Namespace == "" {
		return ValidationError{Field: "namespace", Message: "required"}
	}
	if p.Version < 1 {
		return ValidationError{Field: "version", Message: "must be >= 1"}
	}
	return validateLocation("location", p.Location)
}

// LoadLabwareResult reports the loaded labware.
type LoadLabwareResult struct {
	LabwareID  string            `json:"labwareId"`
	Definition LabwareDefinition `json:"definition"`
	OffsetID   *string           `json:"offsetId"`
}

func (*LoadLabwareResult) isCommandResult() {}

// AddLabwareDefinitionParams registers a custom labware definition.
type AddLabwareDefinitionParams struct {
	Definition LabwareDefinition `json:"definition"`
}

func (*AddLabwareDefinitionParams) CommandType() CommandType {
	return CommandTypeAddLabwareDefinition
}

func (p *AddLabwareDefinitionParams) Validate() error {
	d := p.Definition
	if d.Parameters.LoadName == "" {
		return ValidationError{Field: "definition.parameters.loadName", Message: "required"}
	}
	if d.Namespace == "" {
		return ValidationError{Field: "definition.namespace", Message: "required"}
	}
	if d.Version < 1 {
		return ValidationError{Field: "definition.version", Message: "must be >= 1"}
	}
	if len(d.Wells) == 0 {
		return ValidationError{Field: "definition.wells", Message: "at least one well required"}
	}
	return nil
}

// AddLabwareDefinitionResult identifies the registered definition.
type AddLabwareDefinitionResult struct {
	LoadName  string `json:"loadName"`
	Namespace string `json:"namespace"`
	Version   int    `json:"version"`
}

func (*AddLabwareDefinitionResult) isCommandResult() {}

// URI returns the definition URI of the registered definition.
func (r *AddLabwareDefinitionResult) URI() string {
	return LabwareURI(r.Namespace, r.LoadName, r.Version)
}

// LoadPipetteParams attaches a pipette to a mount.
type LoadPipetteParams struct {
	PipetteName PipetteName `json:"pipetteName"`
	Mount       MountType   `json:"mount"`
	PipetteID   string      `json:"pipetteId,omitempty"`
}

func (*LoadPipetteParams) CommandType() CommandType { return CommandTypeLoadPipette }

func (p *LoadPipetteParams) Validate() error {
	if _, ok := LookupPipetteSpec(p.PipetteName); !ok {
		return ValidationError{Field: "pipetteName", Message: fmt.Sprintf("unknown pipette %q", p.PipetteName)}
	}
	if !p.Mount.Valid() {
		return ValidationError{Field: "mount", Message: fmt.Sprintf("unknown mount %q", p.Mount)}
	}
	return nil
}

// LoadPipetteResult reports the loaded pipette.
type LoadPipetteResult struct {
	PipetteID string `json:"pipetteId"`
}

func (*LoadPipetteResult) isCommandResult() {}

// LoadModuleParams places a hardware module in a deck slot.
type LoadModuleParams struct {
	Model    ModuleModel     `json:"model"`
	Location LabwareLocation `json:"location"`
	ModuleID string          `json:"moduleId,omitempty"`
}

func (*LoadModuleParams) CommandType() CommandType { return CommandTypeLoadModule }

func (p *LoadModuleParams) Validate() error {
	if !p.Model.Valid() {
		return ValidationError{Field: "model", Message: fmt.Sprintf("unknown module model %q", p.Model)}
	}
	if p.Location.IsModule() || p.Location.SlotName == "" {
		return ValidationError{Field: "location.slotName", Message: "modules must be loaded into a deck slot"}
	}
	return nil
}

// LoadModuleResult reports the loaded module.
type LoadModuleResult struct {
	ModuleID string      `json:"moduleId"`
	Model    ModuleModel `json:"model"`
}

func (*LoadModuleResult) isCommandResult() {}

// HomeParams homes the given axes, or all axes when empty.
type HomeParams struct {
	Axes []MovementAxis `json:"axes,omitempty"`
}

func (*HomeParams) CommandType() CommandType { return CommandTypeHome }

func (p *HomeParams) Validate() error {
	for i, axis := range p.Axes {
		if !axis.Valid() {
			return ValidationError{Field: fmt.Sprintf("axes[%d]", i), Message: fmt.Sprintf("unknown axis %q", axis)}
		}
	}
	return nil
}

// WellTarget addresses a well of a loaded labware with a loaded pipette.
type WellTarget struct {
	PipetteID    string       `json:"pipetteId"`
	LabwareID    string       `json:"labwareId"`
	WellName     string       `json:"wellName"`
	WellLocation WellLocation `json:"wellLocation"`
}

// Validate checks that every reference is present.
func (w WellTarget) Validate() error {
	switch {
	case w.PipetteID == "":
		return ValidationError{Field: "pipetteId", Message: "required"}
	case w.LabwareID == "":
		return ValidationError{Field: "labwareId", Message: "required"}
	case w.WellName == "":
		return ValidationError{Field: "wellName", Message: "required"}
	}
	switch w.WellLocation.Origin {
	case "", WellOriginTop, WellOriginBottom:
		return nil
	}
	return ValidationError{Field: "wellLocation.origin", Message: fmt.Sprintf("unknown origin %q", w.WellLocation.Origin)}
}

// MoveToWellParams moves a pipette to a well.
type MoveToWellParams struct {
	WellTarget
}

func (*MoveToWellParams) CommandType() CommandType { return CommandTypeMoveToWell }

// MoveRelativeParams moves a pipette along one axis.
type MoveRelativeParams struct {
	PipetteID string       `json:"pipetteId"`
	Axis      MovementAxis `json:"axis"`
	Distance  float64      `json:"distance"`
}

func (*MoveRelativeParams) CommandType() CommandType { return CommandTypeMoveRelative }

func (p *MoveRelativeParams) Validate() error {
	if p.PipetteID == "" {
		return ValidationError{Field: "pipetteId", Message: "required"}
	}
	if !p.Axis.Valid() {
		return ValidationError{Field: "axis", Message: fmt.Sprintf("unknown axis %q", p.Axis)}
	}
	return nil
}

// PickUpTipParams picks up a tip from a tiprack well.
type PickUpTipParams struct {
	WellTarget
}

func (*PickUpTipParams) CommandType() CommandType { return CommandTypePickUpTip }

// DropTipParams drops the attached tip into a well.
type DropTipParams struct {
	WellTarget
}

func (*DropTipParams) CommandType() CommandType { return CommandTypeDropTip }

// AspirateParams draws liquid from a well.
type AspirateParams struct {
	WellTarget
	Volume   float64 `json:"volume"`
	FlowRate float64 `json:"flowRate,omitempty"`
}

func (*AspirateParams) CommandType() CommandType { return CommandTypeAspirate }

func (p *AspirateParams) Validate() error {
	if err := p.WellTarget.Validate(); err != nil {
		return err
	}
	return validateVolume(p.Volume, p.FlowRate)
}

// AspirateResult reports the aspirated volume.
type AspirateResult struct {
	Volume float64 `json:"volume"`
}

func (*AspirateResult) isCommandResult() {}

// DispenseParams expels liquid into a well.
type DispenseParams struct {
	WellTarget
	Volume   float64 `json:"volume"`
	FlowRate float64 `json:"flowRate,omitempty"`
}

func (*DispenseParams) CommandType() CommandType { return CommandTypeDispense }

func (p *DispenseParams) Validate() error {
	if err := p.WellTarget.Validate(); err != nil {
		return err
	}
	return validateVolume(p.Volume, p.FlowRate)
}

// DispenseResult reports the dispensed volume.
type DispenseResult struct {
	Volume float64 `json:"volume"`
}

func (*DispenseResult) isCommandResult() {}

// PauseParams pauses the run until resumed.
type PauseParams struct {
	Message string `json:"message,omitempty"`
}

func (*PauseParams) CommandType() CommandType { return CommandTypePause }

// EmptyResult is the result of commands that report nothing.
type EmptyResult struct{}

func (*EmptyResult) isCommandResult() {}

func validateLocation(field string, loc LabwareLocation) error {
	if loc.SlotName == "" && loc.ModuleID == "" {
		return ValidationError{Field: field, Message: "slotName or moduleId required"}
	}
	if loc.SlotName != "" && loc.ModuleID != "" {
		return ValidationError{Field: field, Message: "slotName and moduleId are mutually exclusive"}
	}
	return nil
}

func validateVolume(volume, flowRate float64) error {
	if volume <= 0 {
		return ValidationError{Field: "volume", Message: "must be > 0"}
	}
	if flowRate < 0 {
		return ValidationError{Field: "flowRate", Message: "must be >= 0"}
	}
	return nil
}
