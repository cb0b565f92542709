package pipeline

import (
	"testing"
)

func TestRegistryOrdersByDescendingPriority(t *testing.T) {
	low := &fakeStage{name: "low", priority: 20}
	mid := &fakeStage{name: "mid", priority: 60}
	high := &fakeStage{name: "high", priority: 100}

	r := NewRegistry(low, high, mid)

	got := make([]string, 0, r.Len())
	for _, s := range r.Stages() {
		got = append(got, s.Name())
	}

	want := []string{"high", "mid", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestRegistryKeepsRegistrationOrderOnTies(t *testing.T) {
	a := &fakeStage{name: "a", priority: 50}
	b := &fakeStage{name: "b", priority: 50}
	c := &fakeStage{name: "c", priority: 50}

	r := NewRegistry(a, b, c)

	stages := r.Stages()
	if stages[0].Name() != "a" || stages[1].Name() != "b" || stages[2].Name() != "c" {
		t.Errorf("tied priorities must keep registration order, got %s %s %s",
			stages[0].Name(), stages[1].Name(), stages[2].Name())
	}
}
