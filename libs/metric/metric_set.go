package metric

import (
	"errors"
	"sync"
)

var (
	ErrMetricLabelExist = errors.New("metric label already exist")
)

func NewMetricSet() *MetricSet {
	return &MetricSet{
		metrics: make(map[string]MetricItem),
	}
}

// MetricSet is a label-indexed registry of metric sources, served whole or
// per label through the rpc metrics endpoint.
type MetricSet struct {
	mtx     sync.RWMutex
	metrics map[string]MetricItem
}

// SetMetrics registers the item under label; a duplicate label is an error.
func (ms *MetricSet) SetMetrics(label string, item MetricItem) error {
	if ms.HasMetrics(label) {
		return ErrMetricLabelExist
	}

	ms.mtx.Lock()
	ms.metrics[label] = item
	ms.mtx.Unlock()
	return nil
}

func (ms *MetricSet) HasMetrics(label string) bool {
	ms.mtx.RLock()
	_, existed := ms.metrics[label]
	ms.mtx.RUnlock()
	return existed
}

func (ms *MetricSet) GetMetrics(label string) MetricItem {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	return ms.metrics[label]
}

func (ms *MetricSet) GetAllLabels() []string {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	keys := make([]string, 0, len(ms.metrics))
	for k := range ms.metrics {
		keys = append(keys, k)
	}
	return keys
}

func (ms *MetricSet) GetAllMetrics() []MetricItem {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	vals := make([]MetricItem, 0, len(ms.metrics))
	for _, v := range ms.metrics {
		vals = append(vals, v)
	}
	return vals
}
