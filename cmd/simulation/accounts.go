package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

var brokers = []string{"Raw Trading Ltd", "IC Markets", "Pepperstone", "Exness"}

// fakeAccount is a synthetic terminal whose equity drifts between reports
type fakeAccount struct {
	number      int64
	broker      string
	balance     float64
	floating    float64
	marginUsed  float64
	realized    [5]float64
	holdingFee  [5]float64
	deposits    float64
	withdrawals float64
	openTrades  int
	openCharts  int
	autotrading bool
}

func newFakeAccounts(rng *rand.Rand, n int) []*fakeAccount {
	accounts := make([]*fakeAccount, 0, n)
	for i := 0; i < n; i++ {
		deposit := float64(1000 + rng.Intn(50000))
		accounts = append(accounts, &fakeAccount{
			number:      5000000 + int64(i)*137,
			broker:      brokers[i%len(brokers)],
			balance:     deposit,
			deposits:    deposit,
			openCharts:  1 + rng.Intn(20),
			autotrading: true,
		})
	}
	return accounts
}

// step advances the account by one reporting interval
func (a *fakeAccount) step(rng *rand.Rand) {
	a.floating += rng.NormFloat64() * a.balance * 0.002
	if rng.Float64() < 0.1 {
		// Close the open position.
		a.balance += a.floating
		for i := range a.realized {
			a.realized[i] += a.floating
		}
		a.floating = 0
	}

	// Overnight swap on whatever is still open. Fees are reported negative.
	fee := -float64(a.openTrades) * a.balance * 0.00005
	a.balance += fee
	for i := range a.holdingFee {
		a.holdingFee[i] += fee
	}

	if rng.Float64() < 0.01 && a.balance > 2000 {
		out := a.balance * 0.05
		a.balance -= out
		a.withdrawals -= out
	}

	a.openTrades = rng.Intn(6)
	a.marginUsed = float64(a.openTrades) * a.balance * 0.01
	if rng.Float64() < 0.02 {
		a.autotrading = !a.autotrading
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100)) / 100
}

// payload renders the account the way the terminal reports it
func (a *fakeAccount) payload() ([]byte, error) {
	equity := a.balance + a.floating
	marginPercent := 0.0
	if a.marginUsed > 0 {
		marginPercent = equity / a.marginUsed * 100
	}

	body := map[string]any{
		"broker":              a.broker,
		"account_number":      a.number,
		"balance":             round2(a.balance),
		"equity":              round2(equity),
		"margin_used":         round2(a.marginUsed),
		"free_margin":         round2(equity - a.marginUsed),
		"margin_percent":      round2(marginPercent),
		"profit_loss":         round2(a.floating),
		"deposits_alltime":    round2(a.deposits),
		"withdrawals_alltime": round2(a.withdrawals),
		"open_charts":         a.openCharts,
		"empty_charts":        0,
		"open_trades":         a.openTrades,
		"autotrading":         a.autotrading,
	}
	for i, window := range []string{"daily", "weekly", "monthly", "yearly", "alltime"} {
		body[fmt.Sprintf("realized_pl_%s", window)] = round2(a.realized[i])
		body[fmt.Sprintf("holding_fee_%s", window)] = round2(a.holdingFee[i])
	}
	return json.Marshal(body)
}
