package fusion

// Observation is a raw, source-shaped relationship claim before
// normalization. It is a closed set: exactly one concrete type exists
// per source kind, and Normalize dispatches on the concrete type
// instead of probing optional fields.
type Observation interface {
	observation()
}

// CuratedObservation is a typed relationship label from the curated
// relationship source, e.g. "member of band".
type CuratedObservation struct {
	Source Source
	Label  string
}

// AlgorithmicObservation is a raw match score in [0,1] from a
// similar-artists style endpoint.
type AlgorithmicObservation struct {
	Source Source
	Raw    float64
}

// ManualObservation is a hand-curated override entry with explicit
// similarity and distance.
type ManualObservation struct {
	Label      string
	Similarity float64
	Distance   float64
}

func (CuratedObservation) observation()     {}
func (AlgorithmicObservation) observation() {}
func (ManualObservation) observation()      {}
