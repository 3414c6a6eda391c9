package risk

import (
	"encoding/json"
	"math"
	"testing"
)

func testParams() Params {
	return Params{AccountEquity: 25000, Fraction: 0.02, MaxContracts: 10, MinRiskReward: 0.5}
}

func TestSizePosition(t *testing.T) {
	p := testParams()
	tests := []struct {
		name    string
		maxLoss float64
		want    int
	}{
		{"fits budget", 220, 2},
		{"exact division", 250, 2},
		{"floors at one", 600, 1},
		{"caps at max contracts", 10, 10},
		{"zero loss", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.SizePosition(tt.maxLoss); got != tt.want {
				t.Errorf("SizePosition(%.0f) = %d, want %d", tt.maxLoss, got, tt.want)
			}
		})
	}
}

func TestValidateTradeApproves(t *testing.T) {
	a := testParams().ValidateTrade(220, 300)
	if !a.Approved {
		t.Fatalf("rejected: %s", a.Reason)
	}
	if a.Contracts != 2 {
		t.Errorf("got %d contracts, want 2", a.Contracts)
	}
	if math.Abs(a.RiskPercentage-0.0176) > 1e-9 {
		t.Errorf("got risk pct %.4f, want 0.0176", a.RiskPercentage)
	}
	if math.Abs(a.RiskRewardRatio-300.0/220.0) > 1e-12 {
		t.Errorf("got rr %.4f, want %.4f", a.RiskRewardRatio, 300.0/220.0)
	}
}

func TestValidateTradeRejectsOversizedRisk(t *testing.T) {
	// A single contract already risks 2.4% of equity.
	a := testParams().ValidateTrade(600, 1200)
	if a.Approved {
		t.Fatal("approved a trade above the equity risk limit")
	}
	if a.Contracts != 1 {
		t.Errorf("got %d contracts, want 1", a.Contracts)
	}
	if a.Reason == "" {
		t.Error("rejection carries no reason")
	}
}

func TestValidateTradeRejectsPoorRiskReward(t *testing.T) {
	a := testParams().ValidateTrade(200, 80)
	if a.Approved {
		t.Fatal("approved a trade with risk/reward below the minimum")
	}
	if math.Abs(a.RiskRewardRatio-0.4) > 1e-12 {
		t.Errorf("got rr %.4f, want 0.4", a.RiskRewardRatio)
	}
}

func TestValidateTradeUnboundedProfit(t *testing.T) {
	// Long premium has no profit cap: the reward check passes as long
	// as the risk fraction does.
	a := testParams().ValidateTrade(210, math.Inf(1))
	if !a.Approved {
		t.Fatalf("rejected: %s", a.Reason)
	}
	if !math.IsInf(a.RiskRewardRatio, 1) {
		t.Errorf("got rr %.4f, want +Inf", a.RiskRewardRatio)
	}
}

func TestValidateTradeNoDefinedLoss(t *testing.T) {
	if a := testParams().ValidateTrade(0, 100); a.Approved {
		t.Error("approved a trade with no defined max loss")
	}
}

func TestAssessmentJSONUnboundedReward(t *testing.T) {
	a := testParams().ValidateTrade(210, math.Inf(1))
	body, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, ok := got["risk_reward_ratio"]; !ok || v != nil {
		t.Errorf("risk_reward_ratio = %v, want null", v)
	}

	bounded := testParams().ValidateTrade(220, 300)
	body, err = json.Marshal(bounded)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rr, ok := got["risk_reward_ratio"].(float64)
	if !ok {
		t.Fatalf("risk_reward_ratio = %v, want a number", got["risk_reward_ratio"])
	}
	if math.Abs(rr-300.0/220.0) > 1e-9 {
		t.Errorf("risk_reward_ratio = %v, want %v", rr, 300.0/220.0)
	}
}
