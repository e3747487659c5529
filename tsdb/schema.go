// Package tsdb implements C2: the sample store abstraction over the two
// historical InfluxDB bucket schemas (old field names on the `ip` tag,
// new field names on the `agent_host` tag), the windowed range query used
// by the assembler, and the per-CML rain-intensity output bucket.
package tsdb

// Schema identifies which of the two historical bucket layouts a query
// should target.
type Schema int

const (
	SchemaOld Schema = iota
	SchemaNew
)

// fieldMapping normalizes a schema's raw field names to the canonical
// tx_power/rx_power/temperature names the rest of the core uses.
type fieldMapping struct {
	tag                          string
	rxPowerFields                []string // tried in order; first present wins
	txPowerFields                []string
	temperatureField             string
}

var schemaMappings = map[Schema]fieldMapping{
	SchemaOld: {
		tag:               "ip",
		rxPowerFields:     []string{"rx_power"},
		txPowerFields:     []string{"tx_power"},
		temperatureField:  "temperature",
	},
	SchemaNew: {
		tag:               "agent_host",
		rxPowerFields:     []string{"PrijimanaUroven", "Signal"},
		txPowerFields:     []string{"VysilaciVykon", "Vysilany_Vykon"},
		temperatureField:  "Teplota",
	},
}

// Tag returns the tag name a schema's bucket tags its series with.
func (s Schema) Tag() string { return schemaMappings[s].tag }

// Normalize maps a schema's raw field->series map (as returned by the
// underlying windowed-mean query) onto the canonical
// tx_power/rx_power/temperature keys, picking the first present field in
// each candidate list's old/new field-name table.
func (s Schema) Normalize(raw map[string]map[int64]float64) map[string]map[int64]float64 {
	m := schemaMappings[s]
	out := make(map[string]map[int64]float64)

	pick := func(candidates []string) map[int64]float64 {
		for _, c := range candidates {
			if v, ok := raw[c]; ok {
				return v
			}
		}
		return nil
	}

	if v := pick(m.rxPowerFields); v != nil {
		out["rx_power"] = v
	}
	if v := pick(m.txPowerFields); v != nil {
		out["tx_power"] = v
	}
	if v, ok := raw[m.temperatureField]; ok {
		out["temperature"] = v
	}
	return out
}

// ChooseSchema picks the bucket to query by comparing end to the
// configured old/new data border timestamp.
func ChooseSchema(endUnix, borderUnix int64) Schema {
	if endUnix <= borderUnix {
		return SchemaOld
	}
	return SchemaNew
}
