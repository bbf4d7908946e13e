// Package metrics holds the Prometheus collectors of the matching services.
// Every constructor accepts a nil registerer and then returns a no-op value.
package metrics

const namespace = "emlak"

// normalizeLabel keeps blank label values from producing an empty series.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
