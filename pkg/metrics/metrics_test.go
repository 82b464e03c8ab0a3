package metrics_test

import (
	"testing"

	"github.com/opst/modelfab/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := metrics.Register(r); err != nil {
		t.Fatal(err)
	}
	if err := metrics.Register(r); err == nil {
		t.Error("registering twice should fail")
	}

	metrics.Updates.WithLabelValues(metrics.Accepted).Inc()
	families, err := r.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "modelfab_update_requests" {
			found = true
		}
	}
	if !found {
		t.Error("modelfab_update_requests is not gathered")
	}
}
