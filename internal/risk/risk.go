// Package risk sizes positions against account equity and approves or
// rejects trades on risk fraction and risk/reward grounds.
package risk

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/strategylab/optlabel/internal/config"
)

// Params hold the account-level sizing and approval thresholds.
type Params struct {
	AccountEquity float64
	Fraction      float64 // max share of equity risked per trade
	MaxContracts  int
	MinRiskReward float64
}

// ParamsFrom maps the config section onto risk parameters.
func ParamsFrom(cfg config.RiskConfig) Params {
	return Params{
		AccountEquity: cfg.AccountEquity,
		Fraction:      cfg.Fraction,
		MaxContracts:  cfg.MaxContracts,
		MinRiskReward: cfg.MinRiskReward,
	}
}

// Assessment is the risk verdict for a sized trade. A rejection is a
// normal outcome, not an error: Approved is false and Reason says why.
type Assessment struct {
	Approved        bool    `json:"approved"`
	Contracts       int     `json:"contracts"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	RiskPercentage  float64 `json:"risk_percentage"`
	Reason          string  `json:"reason,omitempty"`
}

// MarshalJSON emits risk_reward_ratio as null when the upside is
// unbounded, since JSON cannot represent +Inf.
func (a Assessment) MarshalJSON() ([]byte, error) {
	type alias Assessment
	out := struct {
		alias
		RiskRewardRatio *float64 `json:"risk_reward_ratio"`
	}{alias: alias(a)}
	if !math.IsInf(a.RiskRewardRatio, 1) {
		out.RiskRewardRatio = &a.RiskRewardRatio
	}
	return json.Marshal(out)
}

// SizePosition returns the contract count for a trade with the given
// per-contract max loss: the floor of the per-trade risk budget divided
// by the loss, at least 1 and at most MaxContracts.
func (p Params) SizePosition(maxLossPerContract float64) int {
	if maxLossPerContract <= 0 {
		return 1
	}
	n := int(math.Floor(p.AccountEquity * p.Fraction / maxLossPerContract))
	if n < 1 {
		n = 1
	}
	if n > p.MaxContracts {
		n = p.MaxContracts
	}
	return n
}

// ValidateTrade sizes the trade and checks it against the risk limits.
// maxLoss and maxProfit are per contract in dollars; maxProfit may be
// +Inf for unbounded payoffs, which trivially passes the reward check.
func (p Params) ValidateTrade(maxLoss, maxProfit float64) Assessment {
	if maxLoss <= 0 {
		return Assessment{Reason: "trade has no defined max loss"}
	}
	contracts := p.SizePosition(maxLoss)
	totalRisk := maxLoss * float64(contracts)
	riskPct := totalRisk / p.AccountEquity

	rr := math.Inf(1)
	if !math.IsInf(maxProfit, 1) {
		rr = maxProfit / maxLoss
	}

	a := Assessment{
		Contracts:       contracts,
		RiskRewardRatio: rr,
		RiskPercentage:  riskPct,
	}
	if riskPct > p.Fraction {
		a.Reason = fmt.Sprintf("risk %.2f%% of equity exceeds the %.2f%% limit", riskPct*100, p.Fraction*100)
		return a
	}
	if rr < p.MinRiskReward {
		a.Reason = fmt.Sprintf("risk/reward %.2f below minimum %.2f", rr, p.MinRiskReward)
		return a
	}
	a.Approved = true
	return a
}
