package ir

// LabwareDefinition is the static description of a labware type.
// Definitions are immutable lookup tables; the engine never mutates them.
type LabwareDefinition struct {
	Namespace  string                    `json:"namespace"`
	Version    int                       `json:"version"`
	Parameters LabwareParameters         `json:"parameters"`
	Metadata   LabwareMetadata           `json:"metadata"`
	Dimensions LabwareDimensions         `json:"dimensions"`
	Ordering   [][]string                `json:"ordering"`
	Wells      map[string]WellDefinition `json:"wells"`
}

// LabwareParameters are the behavioural parameters of a definition.
type LabwareParameters struct {
	LoadName  string   `json:"loadName"`
	Format    string   `json:"format"`
	IsTiprack bool     `json:"isTiprack"`
	TipLength *float64 `json:"tipLength,omitempty"`
	Quirks    []string `json:"quirks,omitempty"`
}

// LabwareMetadata is display information.
type LabwareMetadata struct {
	DisplayName     string `json:"displayName"`
	DisplayCategory string `json:"displayCategory"`
}

// LabwareDimensions is the outer footprint of a definition.
type LabwareDimensions struct {
	XDimension float64 `json:"xDimension"`
	YDimension float64 `json:"yDimension"`
	ZDimension float64 `json:"zDimension"`
}

// WellDefinition is a single well. X, Y and Z locate the well bottom center
// relative to the labware origin.
type WellDefinition struct {
	Depth             float64 `json:"depth"`
	TotalLiquidVolume float64 `json:"totalLiquidVolume"`
	Shape             string  `json:"shape"`
	Diameter          float64 `json:"diameter,omitempty"`
	XDimension        float64 `json:"xDimension,omitempty"`
	YDimension        float64 `json:"yDimension,omitempty"`
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	Z                 float64 `json:"z"`
}

// URI returns the definition URI.
func (d LabwareDefinition) URI() string {
	return LabwareURI(d.Namespace, d.Parameters.LoadName, d.Version)
}
