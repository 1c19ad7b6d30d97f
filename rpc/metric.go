package rpc

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultMetrics struct {
	Metrics map[string]string `json:"metrics"`
}

// JSONMetrics dumps the registered metric sources, either all of them or the
// one the label names.
func JSONMetrics(ctx *rpctypes.Context, label string) (*ResultMetrics, error) {
	result := &ResultMetrics{Metrics: make(map[string]string)}

	var labels []string
	if label != "" {
		labels = []string{label}
	} else {
		labels = env.MetricSet.GetAllLabels()
	}

	for _, l := range labels {
		if item := env.MetricSet.GetMetrics(l); item != nil {
			result.Metrics[l] = item.JSONString()
		}
	}
	return result, nil
}
