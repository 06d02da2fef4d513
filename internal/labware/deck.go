// Package labware provides the built-in labware definitions and deck
// geometry the engine resolves loads against.
//
// Definitions are immutable lookup tables. Callers receive copies and must
// not rely on mutating them.
package labware

import (
	"sort"
	"strconv"

	"github.com/roach88/labengine/internal/ir"
)

// FixedTrashID is the id of the trash loaded into every run.
const FixedTrashID = "fixedTrash"

// Deck describes slot positions for a robot deck.
type Deck struct {
	Name  string
	slots map[ir.DeckSlotName]ir.Point
	// FixedTrashSlot is the slot occupied by the fixed trash.
	FixedTrashSlot ir.DeckSlotName
}

// OT2Deck returns the standard twelve-slot deck. Slots are numbered
// left-to-right, front-to-back; slot 12 holds the fixed trash.
func OT2Deck() *Deck {
	const (
		colPitch = 132.5
		rowPitch = 90.5
	)
	slots := make(map[ir.DeckSlotName]ir.Point, 12)
	for i := 0; i < 12; i++ {
		name := ir.DeckSlotName(strconv.Itoa(i + 1))
		slots[name] = ir.Point{
			X: float64(i%3) * colPitch,
			Y: float64(i/3) * rowPitch,
			Z: 0,
		}
	}
	return &Deck{Name: "ot2_standard", slots: slots, FixedTrashSlot: "12"}
}

// SlotPosition returns the front-left-bottom corner of a slot.
func (d *Deck) SlotPosition(slot ir.DeckSlotName) (ir.Point, error) {
	p, ok := d.slots[slot]
	if !ok {
		return ir.Point{}, ir.NewEngineError(ir.ErrCodeSlotDoesNotExist,
			"slot %s does not exist in deck %s", slot, d.Name)
	}
	return p, nil
}

// Slots returns slot names in numeric order.
func (d *Deck) Slots() []ir.DeckSlotName {
	names := make([]ir.DeckSlotName, 0, len(d.slots))
	for name := range d.slots {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, _ := strconv.Atoi(string(names[i]))
		b, _ := strconv.Atoi(string(names[j]))
		return a < b
	})
	return names
}

// moduleLabwareOffsets is the position of a module's labware surface
// relative to the slot the module occupies.
var moduleLabwareOffsets = map[ir.ModuleModel]ir.Point{
	ir.TemperatureModuleV2:  {X: -1.45, Y: -0.15, Z: 80.09},
	ir.MagneticModuleV2:     {X: -1.175, Y: -0.125, Z: 82.25},
	ir.ThermocyclerModuleV1: {X: 0, Y: 82.56, Z: 97.8},
	ir.HeaterShakerModuleV1: {X: -0.125, Y: 1.125, Z: 68.275},
}

// ModuleLabwareOffset returns where labware sits on top of a module,
// relative to the module's slot.
func ModuleLabwareOffset(model ir.ModuleModel) ir.Point {
	return moduleLabwareOffsets[model]
}
