package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// seriesWithLabel finds the series of family name carrying label=value.
func seriesWithLabel(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m, nil
				}
			}
		}
		return nil, fmt.Errorf("%s has no series with %s=%q", name, label, value)
	}
	return nil, fmt.Errorf("%s not gathered", name)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := seriesWithLabel(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := seriesWithLabel(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetHistogram().GetSampleSum(), nil
}
