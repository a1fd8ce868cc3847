package weather_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuswx/nimbus/internal/weather"
)

func TestPayloadValidator_Accepts(t *testing.T) {
	v := weather.PayloadValidator{}

	t.Run("complete payload", func(t *testing.T) {
		assert.NoError(t, v.Validate(validPayload()))
	})

	t.Run("boundary values", func(t *testing.T) {
		p := validPayload()
		p.Object("main")["temp"] = float64(-100)
		p.Object("main")["humidity"] = float64(100)
		p.Object("wind")["speed"] = float64(0)
		p.Object("wind")["deg"] = float64(360)
		p.Object("clouds")["all"] = float64(0)
		assert.NoError(t, v.Validate(p))
	})

	t.Run("decoded with UseNumber", func(t *testing.T) {
		var p weather.RawPayload
		dec := json.NewDecoder(stringsReader(`{"main":{"temp":1,"humidity":2,"pressure":3},"wind":{"speed":4,"deg":5},"clouds":{"all":6},"weather":[{"main":"Rain"}],"rain":{"1h":0.5}}`))
		dec.UseNumber()
		require.NoError(t, dec.Decode(&p))
		assert.NoError(t, v.Validate(p))
	})
}

func TestPayloadValidator_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p weather.RawPayload) weather.RawPayload
		reason string
	}{
		{"nil payload", func(weather.RawPayload) weather.RawPayload { return nil }, "payload is empty"},
		{"empty payload", func(weather.RawPayload) weather.RawPayload { return weather.RawPayload{} }, "payload is empty"},
		{"missing temperature", func(p weather.RawPayload) weather.RawPayload { delete(p.Object("main"), "temp"); return p }, "missing temperature"},
		{"missing main object", func(p weather.RawPayload) weather.RawPayload { delete(p, "main"); return p }, "missing temperature"},
		{"missing humidity", func(p weather.RawPayload) weather.RawPayload { delete(p.Object("main"), "humidity"); return p }, "missing humidity"},
		{"missing pressure", func(p weather.RawPayload) weather.RawPayload { delete(p.Object("main"), "pressure"); return p }, "missing pressure"},
		{"missing wind speed", func(p weather.RawPayload) weather.RawPayload { delete(p.Object("wind"), "speed"); return p }, "missing wind speed"},
		{"missing wind direction", func(p weather.RawPayload) weather.RawPayload { delete(p.Object("wind"), "deg"); return p }, "missing wind direction"},
		{"missing cloud cover", func(p weather.RawPayload) weather.RawPayload { delete(p, "clouds"); return p }, "missing cloud cover"},
		{"temperature too hot", func(p weather.RawPayload) weather.RawPayload { p.Object("main")["temp"] = 61.0; return p }, "invalid temperature"},
		{"temperature not a number", func(p weather.RawPayload) weather.RawPayload { p.Object("main")["temp"] = "warm"; return p }, "invalid temperature: not a number"},
		{"null humidity", func(p weather.RawPayload) weather.RawPayload { p.Object("main")["humidity"] = nil; return p }, "invalid humidity: not a number"},
		{"humidity over 100", func(p weather.RawPayload) weather.RawPayload { p.Object("main")["humidity"] = 100.5; return p }, "invalid humidity"},
		{"zero pressure", func(p weather.RawPayload) weather.RawPayload { p.Object("main")["pressure"] = 0.0; return p }, "invalid pressure"},
		{"negative wind speed", func(p weather.RawPayload) weather.RawPayload { p.Object("wind")["speed"] = -0.1; return p }, "invalid wind speed"},
		{"wind direction over 360", func(p weather.RawPayload) weather.RawPayload { p.Object("wind")["deg"] = 361.0; return p }, "invalid wind direction"},
		{"cloud cover negative", func(p weather.RawPayload) weather.RawPayload { p.Object("clouds")["all"] = -1.0; return p }, "invalid cloud cover"},
		{"negative rain", func(p weather.RawPayload) weather.RawPayload {
			p["rain"] = map[string]any{"1h": -2.0}
			return p
		}, "invalid precipitation"},
		{"no condition list", func(p weather.RawPayload) weather.RawPayload { delete(p, "weather"); return p }, "missing weather condition"},
		{"empty condition list", func(p weather.RawPayload) weather.RawPayload { p["weather"] = []any{}; return p }, "missing weather condition"},
		{"blank condition", func(p weather.RawPayload) weather.RawPayload {
			p["weather"] = []any{map[string]any{"main": ""}}
			return p
		}, "missing weather condition"},
	}

	v := weather.PayloadValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.mutate(validPayload()))
			require.Error(t, err)

			var rejected *weather.RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Contains(t, rejected.Reason, tt.reason)
			assert.Equal(t, weather.KindRejected, weather.KindOf(err))
		})
	}
}

func TestPayloadValidator_PresenceCheckedBeforeRanges(t *testing.T) {
	p := validPayload()
	p.Object("main")["temp"] = 999.0
	delete(p.Object("clouds"), "all")

	err := weather.PayloadValidator{}.Validate(p)

	var rejected *weather.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "missing cloud cover", rejected.Reason)
}

func TestPayloadValidator_Deterministic(t *testing.T) {
	p := validPayload()
	p.Object("wind")["deg"] = 400.0

	first := weather.PayloadValidator{}.Validate(p)
	second := weather.PayloadValidator{}.Validate(p)

	require.Error(t, first)
	assert.Equal(t, first.Error(), second.Error())
}
