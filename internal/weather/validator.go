package weather

import "math"

// field describes one required numeric reading and its physical range.
type field struct {
	object string
	key    string
	name   string
	min    float64
	max    float64
	// exclusiveMin makes the lower bound strict (pressure > 0).
	exclusiveMin bool
}

// requiredFields lists the checks in the order they are reported.
var requiredFields = []field{
	{object: "main", key: "temp", name: "temperature", min: -100, max: 60},
	{object: "main", key: "humidity", name: "humidity", min: 0, max: 100},
	{object: "main", key: "pressure", name: "pressure", min: 0, max: math.MaxFloat64, exclusiveMin: true},
	{object: "wind", key: "speed", name: "wind speed", min: 0, max: 150},
	{object: "wind", key: "deg", name: "wind direction", min: 0, max: 360},
	{object: "clouds", key: "all", name: "cloud cover", min: 0, max: 100},
}

// PayloadValidator decides whether a raw upstream payload can be trusted.
// It is pure: the same payload always yields the same verdict.
type PayloadValidator struct{}

// Validate returns nil when p is usable, or a *RejectedError carrying the
// first failing check. Checks run in order: non-empty payload, presence of
// every required reading, physical ranges, then the condition label.
func (PayloadValidator) Validate(p RawPayload) error {
	if len(p) == 0 {
		return rejectf("payload is empty")
	}

	for _, f := range requiredFields {
		if !p.Object(f.object).Has(f.key) {
			return rejectf("missing %s", f.name)
		}
	}

	for _, f := range requiredFields {
		v, ok := p.Object(f.object).Number(f.key)
		if !ok {
			return rejectf("invalid %s: not a number", f.name)
		}
		if v < f.min || v > f.max || (f.exclusiveMin && v == f.min) {
			return rejectf("invalid %s: %g", f.name, v)
		}
	}

	if rain := p.Object("rain"); rain != nil {
		for _, key := range []string{"1h", "3h"} {
			if v, ok := rain.Number(key); ok && v < 0 {
				return rejectf("invalid precipitation: %g", v)
			}
		}
	}

	if p.condition() == "" {
		return rejectf("missing weather condition")
	}

	return nil
}
