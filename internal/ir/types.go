package ir

import (
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DeckSlotName names a deck slot ("1" through "12" on a standard deck).
type DeckSlotName string

// LabwareLocation is where a piece of labware sits: directly in a deck slot,
// or on top of a loaded module. Exactly one field is set.
//
// LabwareLocation is comparable; offsets are matched with ==.
type LabwareLocation struct {
	SlotName DeckSlotName `json:"slotName,omitempty"`
	ModuleID string       `json:"moduleId,omitempty"`
}

// DeckSlotLocation returns a location in the given deck slot.
func DeckSlotLocation(slot DeckSlotName) LabwareLocation {
	return LabwareLocation{SlotName: slot}
}

// ModuleLocation returns a location on top of the given module.
func ModuleLocation(moduleID string) LabwareLocation {
	return LabwareLocation{ModuleID: moduleID}
}

// IsModule reports whether the location is on a module.
func (l LabwareLocation) IsModule() bool {
	return l.ModuleID != ""
}

func (l LabwareLocation) String() string {
	if l.IsModule() {
		return "module:" + l.ModuleID
	}
	return "slot:" + string(l.SlotName)
}

// MountType identifies a pipette mount.
type MountType string

const (
	MountLeft  MountType = "left"
	MountRight MountType = "right"
)

// Valid reports whether m is a known mount.
func (m MountType) Valid() bool {
	return m == MountLeft || m == MountRight
}

// MovementAxis is an axis for relative moves.
type MovementAxis string

const (
	AxisX MovementAxis = "x"
	AxisY MovementAxis = "y"
	AxisZ MovementAxis = "z"
)

// Valid reports whether a is a known axis.
func (a MovementAxis) Valid() bool {
	return a == AxisX || a == AxisY || a == AxisZ
}

// Point is a deck coordinate in millimetres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns p + o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// WellOrigin is the reference point of a WellLocation.
type WellOrigin string

const (
	WellOriginTop    WellOrigin = "top"
	WellOriginBottom WellOrigin = "bottom"
)

// WellOffset is added to the well origin.
type WellOffset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WellLocation is a position relative to a well. The zero value is the top
// center of the well.
type WellLocation struct {
	Origin WellOrigin `json:"origin,omitempty"`
	Offset WellOffset `json:"offset"`
}

// LabwareOffsetVector is a calibration correction applied to a labware's
// nominal position.
type LabwareOffsetVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point converts the vector to a Point.
func (v LabwareOffsetVector) Point() Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

// LabwareOffsetCreate is the request to register a labware offset.
type LabwareOffsetCreate struct {
	DefinitionURI string              `json:"definitionUri"`
	Location      LabwareLocation     `json:"location"`
	Vector        LabwareOffsetVector `json:"vector"`
}

// LabwareOffset is a registered offset. Immutable once created.
type LabwareOffset struct {
	ID            string              `json:"id"`
	CreatedAt     time.Time           `json:"createdAt"`
	DefinitionURI string              `json:"definitionUri"`
	Location      LabwareLocation     `json:"location"`
	Vector        LabwareOffsetVector `json:"vector"`
}

// LoadedLabware is a piece of labware created by a successful loadLabware.
//
// OffsetID, when set, must reference an offset already present in state.
type LoadedLabware struct {
	ID            string          `json:"id"`
	LoadName      string          `json:"loadName"`
	DefinitionURI string          `json:"definitionUri"`
	Location      LabwareLocation `json:"location"`
	OffsetID      *string         `json:"offsetId"`
}

// LoadedPipette is a pipette created by a successful loadPipette.
type LoadedPipette struct {
	ID          string      `json:"id"`
	PipetteName PipetteName `json:"pipetteName"`
	Mount       MountType   `json:"mount"`
}

// ModuleModel names a hardware module model.
type ModuleModel string

const (
	TemperatureModuleV2  ModuleModel = "temperatureModuleV2"
	MagneticModuleV2     ModuleModel = "magneticModuleV2"
	ThermocyclerModuleV1 ModuleModel = "thermocyclerModuleV1"
	HeaterShakerModuleV1 ModuleModel = "heaterShakerModuleV1"
)

// Valid reports whether m is a known module model.
func (m ModuleModel) Valid() bool {
	switch m {
	case TemperatureModuleV2, MagneticModuleV2, ThermocyclerModuleV1, HeaterShakerModuleV1:
		return true
	}
	return false
}

// LoadedModule is a module created by a successful loadModule.
type LoadedModule struct {
	ID       string          `json:"id"`
	Model    ModuleModel     `json:"model"`
	Location LabwareLocation `json:"location"`
}

// Dimensions is the bounding box of a labware in millimetres.
type Dimensions struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LabwareURI builds a definition URI: "{namespace}/{loadName}/{version}".
//
// Components are NFC-normalized so that visually identical load names typed
// on different systems resolve to the same definition.
func LabwareURI(namespace, loadName string, version int) string {
	return fmt.Sprintf("%s/%s/%d", norm.NFC.String(namespace), norm.NFC.String(loadName), version)
}
