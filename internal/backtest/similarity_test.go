package backtest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/strategylab/optlabel/internal/features"
)

func regimeRecord(i int, trend, ivRank, adx, rsi float64) features.Record {
	return features.Record{
		Date:        fmt.Sprintf("2024-01-%02d", i+1),
		TrendRegime: trend,
		IVRank:      ivRank,
		ADX14:       adx,
		RSI14:       rsi,
	}
}

func TestFindSimilarStrictMatch(t *testing.T) {
	tol := Tolerances{IVRank: 10, ADX: 5, RSI: 10, MinDays: 2, RelaxedIVRank: 15, RelaxedADX: 10}

	records := []features.Record{
		regimeRecord(0, 3, 50, 22, 60), // match
		regimeRecord(1, 3, 58, 25, 55), // match, edges inside bands
		regimeRecord(2, 1, 50, 22, 60), // wrong trend regime
		regimeRecord(3, 3, 65, 22, 60), // iv rank off by 15
		regimeRecord(4, 3, 50, 30, 60), // adx off by 8
		regimeRecord(5, 3, 50, 22, 60),
	}

	got, err := FindSimilar(records, 5, tol, nil)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	want := []int{0, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFindSimilarIgnoresFutureDays(t *testing.T) {
	tol := Tolerances{IVRank: 10, ADX: 5, RSI: 10, MinDays: 1, RelaxedIVRank: 15, RelaxedADX: 10}

	records := []features.Record{
		regimeRecord(0, 3, 50, 22, 60),
		regimeRecord(1, 3, 50, 22, 60),
		regimeRecord(2, 3, 50, 22, 60), // after the query date
	}

	got, err := FindSimilar(records, 1, tol, nil)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	for _, i := range got {
		if i >= 1 {
			t.Errorf("matched index %d at or after the query day", i)
		}
	}
}

func TestFindSimilarWidensOnce(t *testing.T) {
	tol := Tolerances{IVRank: 10, ADX: 5, RSI: 10, MinDays: 2, RelaxedIVRank: 15, RelaxedADX: 10}

	// No strict matches: trend regimes differ. Both fall inside the
	// relaxed bands, which ignore trend and RSI entirely.
	records := []features.Record{
		regimeRecord(0, 1, 62, 28, 20),
		regimeRecord(1, 0, 38, 15, 90),
		regimeRecord(2, 3, 50, 22, 60),
	}

	got, err := FindSimilar(records, 2, tol, nil)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d relaxed matches, want 2", len(got))
	}
}

func TestFindSimilarInsufficientDays(t *testing.T) {
	tol := Tolerances{IVRank: 10, ADX: 5, RSI: 10, MinDays: 5, RelaxedIVRank: 15, RelaxedADX: 10}

	records := []features.Record{
		regimeRecord(0, 3, 50, 22, 60),
		regimeRecord(1, 3, 90, 22, 60), // outside even relaxed iv band
		regimeRecord(2, 3, 50, 22, 60),
	}

	_, err := FindSimilar(records, 2, tol, nil)
	var insufficient *InsufficientSimilarDaysError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientSimilarDaysError", err)
	}
	if insufficient.Found != 1 || insufficient.Want != 5 {
		t.Errorf("got found=%d want=%d, expected found=1 want=5", insufficient.Found, insufficient.Want)
	}
}
