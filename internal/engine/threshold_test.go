package engine

import (
	"testing"

	"github.com/copperline/copperline/internal/store"
)

func TestNextStatus(t *testing.T) {
	const qualified, customer = 50, 100

	tests := []struct {
		name    string
		score   int
		current string
		want    string
	}{
		{"below both", 49, store.StatusNew, store.StatusNew},
		{"crosses qualified", 50, store.StatusNew, store.StatusQualified},
		{"between thresholds", 75, store.StatusNew, store.StatusQualified},
		{"crosses both at once", 120, store.StatusNew, store.StatusCustomer},
		{"crosses customer from qualified", 100, store.StatusQualified, store.StatusCustomer},
		{"never demotes below qualified", 10, store.StatusQualified, store.StatusQualified},
		{"never demotes below customer", 10, store.StatusCustomer, store.StatusCustomer},
		{"negative score", -20, store.StatusNew, store.StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextStatus(tt.score, qualified, customer, tt.current)
			if got != tt.want {
				t.Errorf("nextStatus(%d, %q) = %q, want %q", tt.score, tt.current, got, tt.want)
			}
		})
	}
}

func TestNextStatusEqualThresholds(t *testing.T) {
	// qualified == customer: crossing once jumps straight to customer.
	got := nextStatus(50, 50, 50, store.StatusNew)
	if got != store.StatusCustomer {
		t.Errorf("got %q, want %q", got, store.StatusCustomer)
	}
}
