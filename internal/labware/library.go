package labware

import (
	"fmt"
	"sort"

	"github.com/roach88/labengine/internal/ir"
)

// Namespace is the namespace of every built-in definition.
const Namespace = "opentrons"

// Built-in load names.
const (
	Tiprack300      = "opentrons_96_tiprack_300ul"
	Tiprack20       = "opentrons_96_tiprack_20ul"
	Wellplate96Flat = "corning_96_wellplate_360ul_flat"
	Reservoir12     = "nest_12_reservoir_15ml"
	FixedTrash      = "opentrons_1_trash_1100ml_fixed"
)

// Library is a read-only set of definitions keyed by definition URI.
type Library struct {
	byURI map[string]ir.LabwareDefinition
}

// NewLibrary builds a library from the given definitions. Later
// definitions with the same URI replace earlier ones.
func NewLibrary(defs ...ir.LabwareDefinition) *Library {
	l := &Library{byURI: make(map[string]ir.LabwareDefinition, len(defs))}
	for _, def := range defs {
		l.byURI[def.URI()] = def
	}
	return l
}

// Builtin returns the library of built-in definitions.
func Builtin() *Library {
	return NewLibrary(
		grid(gridSpec{
			loadName: Tiprack300, displayName: "Opentrons 96 Tip Rack 300 µL", category: "tipRack",
			rows: 8, cols: 12, x0: 14.38, y0: 74.24, z: 5.39, pitch: 9,
			dims:  ir.LabwareDimensions{XDimension: 127.76, YDimension: 85.48, ZDimension: 64.49},
			well:  ir.WellDefinition{Depth: 59.3, TotalLiquidVolume: 300, Shape: "circular", Diameter: 5.23},
			isTip: true, tipLength: 59.3,
		}),
		grid(gridSpec{
			loadName: Tiprack20, displayName: "Opentrons 96 Tip Rack 20 µL", category: "tipRack",
			rows: 8, cols: 12, x0: 14.38, y0: 74.24, z: 25.49, pitch: 9,
			dims:  ir.LabwareDimensions{XDimension: 127.76, YDimension: 85.48, ZDimension: 64.69},
			well:  ir.WellDefinition{Depth: 39.2, TotalLiquidVolume: 20, Shape: "circular", Diameter: 3.27},
			isTip: true, tipLength: 39.2,
		}),
		grid(gridSpec{
			loadName: Wellplate96Flat, displayName: "Corning 96 Well Plate 360 µL Flat", category: "wellPlate",
			rows: 8, cols: 12, x0: 14.38, y0: 74.24, z: 3.55, pitch: 9,
			dims: ir.LabwareDimensions{XDimension: 127.76, YDimension: 85.47, ZDimension: 14.22},
			well: ir.WellDefinition{Depth: 10.67, TotalLiquidVolume: 360, Shape: "circular", Diameter: 6.86},
		}),
		grid(gridSpec{
			loadName: Reservoir12, displayName: "NEST 12 Well Reservoir 15 mL", category: "reservoir",
			rows: 1, cols: 12, x0: 14.38, y0: 42.78, z: 4.55, pitch: 9,
			dims: ir.LabwareDimensions{XDimension: 127.76, YDimension: 85.48, ZDimension: 31.4},
			well: ir.WellDefinition{Depth: 26.85, TotalLiquidVolume: 15000, Shape: "rectangular", XDimension: 8.2, YDimension: 71.2},
		}),
		grid(gridSpec{
			loadName: FixedTrash, displayName: "Opentrons Fixed Trash", category: "trash",
			rows: 1, cols: 1, x0: 82.84, y0: 80, z: 5, pitch: 0,
			dims:   ir.LabwareDimensions{XDimension: 172.86, YDimension: 165.86, ZDimension: 82},
			well:   ir.WellDefinition{Depth: 77, TotalLiquidVolume: 1100000, Shape: "rectangular", XDimension: 107.11, YDimension: 165.67},
			quirks: []string{"fixedTrash", "centerMultichannelOnWells"},
		}),
	)
}

// Lookup returns a copy of the definition with the given URI.
func (l *Library) Lookup(uri string) (ir.LabwareDefinition, bool) {
	def, ok := l.byURI[uri]
	if !ok {
		return ir.LabwareDefinition{}, false
	}
	return clone(def), true
}

// Get returns the definition for a namespace, load name and version.
func (l *Library) Get(namespace, loadName string, version int) (ir.LabwareDefinition, error) {
	uri := ir.LabwareURI(namespace, loadName, version)
	def, ok := l.Lookup(uri)
	if !ok {
		return ir.LabwareDefinition{}, ir.NewEngineError(ir.ErrCodeLabwareDefinitionDoesNotExist,
			"labware definition for matching %s not found", uri)
	}
	return def, nil
}

// URIs returns every definition URI in sorted order.
func (l *Library) URIs() []string {
	uris := make([]string, 0, len(l.byURI))
	for uri := range l.byURI {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

type gridSpec struct {
	loadName    string
	displayName string
	category    string
	rows, cols  int
	x0, y0, z   float64
	pitch       float64
	dims        ir.LabwareDimensions
	well        ir.WellDefinition
	isTip       bool
	tipLength   float64
	quirks      []string
}

// grid generates a rectangular definition. Ordering is column-major, the
// way wells are listed for pipetting: A1, B1, ..., A2, B2, ...
func grid(s gridSpec) ir.LabwareDefinition {
	def := ir.LabwareDefinition{
		Namespace: Namespace,
		Version:   1,
		Parameters: ir.LabwareParameters{
			LoadName:  s.loadName,
			Format:    formatFor(s.rows, s.cols),
			IsTiprack: s.isTip,
			Quirks:    s.quirks,
		},
		Metadata:   ir.LabwareMetadata{DisplayName: s.displayName, DisplayCategory: s.category},
		Dimensions: s.dims,
		Ordering:   make([][]string, 0, s.cols),
		Wells:      make(map[string]ir.WellDefinition, s.rows*s.cols),
	}
	if s.isTip {
		length := s.tipLength
		def.Parameters.TipLength = &length
	}

	for c := 0; c < s.cols; c++ {
		column := make([]string, 0, s.rows)
		for r := 0; r < s.rows; r++ {
			name := fmt.Sprintf("%c%d", 'A'+r, c+1)
			w := s.well
			w.X = s.x0 + float64(c)*s.pitch
			w.Y = s.y0 - float64(r)*s.pitch
			w.Z = s.z
			def.Wells[name] = w
			column = append(column, name)
		}
		def.Ordering = append(def.Ordering, column)
	}
	return def
}

func formatFor(rows, cols int) string {
	switch {
	case rows == 8 && cols == 12:
		return "96Standard"
	case rows == 1 && cols == 12:
		return "trough"
	}
	return "irregular"
}

func clone(def ir.LabwareDefinition) ir.LabwareDefinition {
	out := def
	out.Ordering = make([][]string, len(def.Ordering))
	for i, col := range def.Ordering {
		out.Ordering[i] = append([]string(nil), col...)
	}
	out.Wells = make(map[string]ir.WellDefinition, len(def.Wells))
	for name, w := range def.Wells {
		out.Wells[name] = w
	}
	if def.Parameters.TipLength != nil {
		length := *def.Parameters.TipLength
		out.Parameters.TipLength = &length
	}
	out.Parameters.Quirks = append([]string(nil), def.Parameters.Quirks...)
	return out
}
