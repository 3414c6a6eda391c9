package features

import (
	"math"
	"testing"
)

func TestFeatureNamesMatchVector(t *testing.T) {
	if len(featureNames) != Count {
		t.Fatalf("have %d feature names, want %d", len(featureNames), Count)
	}
	var r Record
	if got := len(r.Vector()); got != Count {
		t.Fatalf("Vector() has %d values, want %d", got, Count)
	}
	seen := make(map[string]bool, Count)
	for _, name := range featureNames {
		if seen[name] {
			t.Errorf("duplicate feature name %q", name)
		}
		seen[name] = true
	}
}

func TestRecordMap(t *testing.T) {
	r := Record{CurrentPrice: 123.45, RSI14: 67.8, CombinedState: 42}
	m := r.Map()
	if len(m) != Count {
		t.Fatalf("Map() has %d entries, want %d", len(m), Count)
	}
	if m["current_price"] != 123.45 {
		t.Errorf("current_price = %v, want 123.45", m["current_price"])
	}
	if m["rsi_14"] != 67.8 {
		t.Errorf("rsi_14 = %v, want 67.8", m["rsi_14"])
	}
	if m["combined_state"] != 42 {
		t.Errorf("combined_state = %v, want 42", m["combined_state"])
	}
}

func TestRecordValidate(t *testing.T) {
	var r Record
	if err := r.Validate(); err != nil {
		t.Fatalf("zero record should validate: %v", err)
	}
	r.IVRank = math.NaN()
	if err := r.Validate(); err == nil {
		t.Fatal("NaN feature should fail validation")
	}
	r.IVRank = 0
	r.OBV = math.Inf(1)
	if err := r.Validate(); err == nil {
		t.Fatal("infinite feature should fail validation")
	}
}
