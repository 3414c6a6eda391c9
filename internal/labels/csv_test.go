package labels

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/strategy"
)

func sampleLabel(date string) Label {
	return Label{
		RunID:       "run-1",
		Date:        date,
		Family:      strategy.IronCondor,
		Rule:        "condor_high_iv_range",
		Candidate:   "IRON_CONDOR/dte14_d7_w3",
		DTE:         14,
		Distance:    0.07,
		Wing:        0.03,
		WinProb:     0.71,
		EV:          47.56,
		MaxLoss:     220,
		Score:       0.216,
		SimilarDays: 45,
		Features:    features.Record{Date: date, IVRank: 62.5, ADX14: 18.2, RSI14: 51.0},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}

func TestCSVStoreWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	s := NewCSVStore(path)

	if err := s.Save(context.Background(), []Label{sampleLabel("2024-06-03")}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one", len(rows))
	}
	header := rows[0]
	if len(header) != 16+features.Count {
		t.Fatalf("got %d header columns, want %d", len(header), 16+features.Count)
	}
	// Date leads, the feature block follows, the family and its
	// parameters come after the features.
	if header[0] != "date" || header[1] != features.Names()[0] {
		t.Errorf("unexpected header prefix %v", header[:2])
	}
	famCol := 1 + features.Count
	if header[famCol] != "family" {
		t.Errorf("column %d = %s, want family", famCol, header[famCol])
	}
	if rows[1][0] != "2024-06-03" || rows[1][famCol] != "IRON_CONDOR" {
		t.Errorf("unexpected row values %v %v", rows[1][0], rows[1][famCol])
	}
	if len(rows[1]) != len(header) {
		t.Errorf("row width %d does not match header width %d", len(rows[1]), len(header))
	}
}

func TestRowLeavesUnusedParamsEmpty(t *testing.T) {
	l := sampleLabel("2024-06-03")
	header := Header()
	row := l.Row()
	byName := make(map[string]string, len(header))
	for i, name := range header {
		byName[name] = row[i]
	}

	// A condor has distance and wing axes but no far expiration,
	// moneyness, or width.
	for _, name := range []string{"far_dte", "moneyness", "width"} {
		if byName[name] != "" {
			t.Errorf("%s = %q, want empty", name, byName[name])
		}
	}
	if byName["distance"] != "0.07" {
		t.Errorf("distance = %q, want 0.07", byName["distance"])
	}
	if byName["wing"] != "0.03" {
		t.Errorf("wing = %q, want 0.03", byName["wing"])
	}
	if byName["dte"] != "14" {
		t.Errorf("dte = %q, want 14", byName["dte"])
	}
	if byName["score"] != "0.216" {
		t.Errorf("score = %q, want 0.216", byName["score"])
	}
	if byName["run_id"] != "run-1" {
		t.Errorf("run_id = %q, want run-1", byName["run_id"])
	}
}

func TestCSVStoreAppendsAcrossSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	s := NewCSVStore(path)
	ctx := context.Background()

	if err := s.Save(ctx, []Label{sampleLabel("2024-06-03")}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save(ctx, []Label{sampleLabel("2024-06-04"), sampleLabel("2024-06-05")}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header plus three", len(rows))
	}
	dates := []string{rows[1][0], rows[2][0], rows[3][0]}
	want := []string{"2024-06-03", "2024-06-04", "2024-06-05"}
	for i := range want {
		if dates[i] != want[i] {
			t.Errorf("row %d date %s, want %s", i+1, dates[i], want[i])
		}
	}
}

func TestCSVStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "labels.csv")
	s := NewCSVStore(path)

	if err := s.Save(context.Background(), []Label{sampleLabel("2024-06-03")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("label file missing: %v", err)
	}
}

func TestCSVStoreEmptyBatchIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	s := NewCSVStore(path)

	if err := s.Save(context.Background(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty save created a file")
	}
}

func TestRowMatchesHeaderWidth(t *testing.T) {
	l := sampleLabel("2024-06-03")
	if got, want := len(l.Row()), len(Header()); got != want {
		t.Fatalf("row width %d, want %d", got, want)
	}
}
