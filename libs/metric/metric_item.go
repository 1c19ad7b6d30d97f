package metric

// MetricItem is one self-contained metric source; each instrumented module
// exposes its counters through this interface.
type MetricItem interface {
	JSONString() string
}

type mockMetricItem struct {
	name string
}

func (mock *mockMetricItem) JSONString() string {
	return mock.name
}
