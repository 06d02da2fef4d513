package ir

// PipetteName is a pipette model name as used in protocols.
type PipetteName string

const (
	P20SingleGen2   PipetteName = "p20_single_gen2"
	P300SingleGen2  PipetteName = "p300_single_gen2"
	P1000SingleGen2 PipetteName = "p1000_single_gen2"
	P20MultiGen2    PipetteName = "p20_multi_gen2"
	P300MultiGen2   PipetteName = "p300_multi_gen2"
)

// PipetteSpec holds the static properties of a pipette model, in µL and µL/s.
type PipetteSpec struct {
	MaxVolume               float64
	MinVolume               float64
	Channels                int
	DefaultAspirateFlowRate float64
	DefaultDispenseFlowRate float64
}

var pipetteSpecs = map[PipetteName]PipetteSpec{
	P20SingleGen2:   {MaxVolume: 20, MinVolume: 1, Channels: 1, DefaultAspirateFlowRate: 7.56, DefaultDispenseFlowRate: 7.56},
	P300SingleGen2:  {MaxVolume: 300, MinVolume: 20, Channels: 1, DefaultAspirateFlowRate: 92.86, DefaultDispenseFlowRate: 92.86},
	P1000SingleGen2: {MaxVolume: 1000, MinVolume: 100, Channels: 1, DefaultAspirateFlowRate: 274.7, DefaultDispenseFlowRate: 274.7},
	P20MultiGen2:    {MaxVolume: 20, MinVolume: 1, Channels: 8, DefaultAspirateFlowRate: 7.6, DefaultDispenseFlowRate: 7.6},
	P300MultiGen2:   {MaxVolume: 300, MinVolume: 20, Channels: 8, DefaultAspirateFlowRate: 94, DefaultDispenseFlowRate: 94},
}

// LookupPipetteSpec returns the spec for a pipette model.
func LookupPipetteSpec(name PipetteName) (PipetteSpec, bool) {
	spec, ok := pipetteSpecs[name]
	return spec, ok
}
