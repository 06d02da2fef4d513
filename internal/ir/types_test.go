package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabwareURI(t *testing.T) {
	assert.Equal(t, "opentrons/corning_96_wellplate_360ul_flat/1",
		LabwareURI("opentrons", "corning_96_wellplate_360ul_flat", 1))
}

func TestLabwareURINFCNormalization(t *testing.T) {
	// "é" as e + combining acute (NFD) must match the precomposed form.
	decomposed := "plate_e\u0301"
	composed := "plate_\u00e9"

	assert.Equal(t, LabwareURI("custom", composed, 2), LabwareURI("custom", decomposed, 2))
	assert.Equal(t, "custom/plate_\u00e9/2", LabwareURI("custom", decomposed, 2))
}

func TestLabwareDefinitionURI(t *testing.T) {
	def := LabwareDefinition{
		Namespace:  "opentrons",
		Version:    3,
		Parameters: LabwareParameters{LoadName: "nest_12_reservoir_15ml"},
	}
	assert.Equal(t, "opentrons/nest_12_reservoir_15ml/3", def.URI())
}

func TestJSONFieldNaming(t *testing.T) {
	offsetID := "offset-1"
	lw := LoadedLabware{
		ID:            "labware-1",
		LoadName:      "plate",
		DefinitionURI: "opentrons/plate/1",
		Location:      DeckSlotLocation("3"),
		OffsetID:      &offsetID,
	}
	data, err := json.Marshal(lw)
	require.NoError(t, err)

	// camelCase JSON tags
	assert.Contains(t, string(data), `"loadName"`)
	assert.Contains(t, string(data), `"definitionUri"`)
	assert.Contains(t, string(data), `"offsetId":"offset-1"`)
	assert.Contains(t, string(data), `"slotName":"3"`)

	assert.NotContains(t, string(data), `"load_name"`)
	assert.NotContains(t, string(data), `"moduleId"`)
}

func TestLoadedLabwareNullOffset(t *testing.T) {
	data, err := json.Marshal(LoadedLabware{ID: "l1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"offsetId":null`)
}

func TestLabwareLocationComparable(t *testing.T) {
	assert.Equal(t, DeckSlotLocation("1"), DeckSlotLocation("1"))
	assert.NotEqual(t, DeckSlotLocation("1"), DeckSlotLocation("2"))
	assert.NotEqual(t, DeckSlotLocation("1"), ModuleLocation("1"))
	assert.True(t, ModuleLocation("mod-1").IsModule())
	assert.Equal(t, "slot:4", DeckSlotLocation("4").String())
	assert.Equal(t, "module:mod-1", ModuleLocation("mod-1").String())
}

func TestPointAdd(t *testing.T) {
	p := Point{X: 1, Y: 2, Z: 3}.Add(Point{X: 0.5, Y: -2, Z: 10})
	assert.Equal(t, Point{X: 1.5, Y: 0, Z: 13}, p)
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, MountLeft.Valid())
	assert.False(t, MountType("middle").Valid())
	assert.True(t, AxisZ.Valid())
	assert.False(t, MovementAxis("w").Valid())
	assert.True(t, MagneticModuleV2.Valid())
	assert.False(t, ModuleModel("fridge").Valid())
}

func TestLookupPipetteSpec(t *testing.T) {
	spec, ok := LookupPipetteSpec(P300SingleGen2)
	require.True(t, ok)
	assert.Equal(t, 300.0, spec.MaxVolume)
	assert.Equal(t, 1, spec.Channels)

	_, ok = LookupPipetteSpec("p5000_quad")
	assert.False(t, ok)
}

func TestEngineStatusIsTerminal(t *testing.T) {
	terminal := map[EngineStatus]bool{
		EngineIdle:           false,
		EngineRunning:        false,
		EnginePauseRequested: false,
		EnginePaused:         false,
		EngineStopRequested:  false,
		EngineStopped:        true,
		EngineFailed:         true,
		EngineSucceeded:      true,
	}
	for status, want := range terminal {
		assert.Equal(t, want, status.IsTerminal(), status)
	}
}
