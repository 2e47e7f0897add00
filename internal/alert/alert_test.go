package alert

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohdghattas/mt4-online-server/internal/config"
)

func reading(equity, marginUsed, marginPercent, pl float64, autotrading bool) Reading {
	return Reading{
		AccountNumber: 42,
		Broker:        "Raw Trading Ltd",
		Equity:        decimal.NewFromFloat(equity),
		MarginUsed:    decimal.NewFromFloat(marginUsed),
		MarginPercent: decimal.NewFromFloat(marginPercent),
		ProfitLoss:    decimal.NewFromFloat(pl),
		Autotrading:   autotrading,
	}
}

func TestEvaluatorDisabled(t *testing.T) {
	e := NewEvaluator(config.AlertsConfig{})
	assert.False(t, e.Enabled())
	assert.Empty(t, e.Evaluate(reading(1, 1, 1, -1000, false)))

	var nilEval *Evaluator
	assert.Empty(t, nilEval.Evaluate(reading(1, 1, 1, -1000, false)))
}

func TestEvaluatorFiresOnceUntilRecovery(t *testing.T) {
	e := NewEvaluator(config.AlertsConfig{EquityBelow: 1000})

	fired := e.Evaluate(reading(950, 0, 0, -50, true))
	require.Len(t, fired, 1)
	assert.Equal(t, RuleEquityBelow, fired[0].Rule)
	assert.Equal(t, int64(42), fired[0].AccountNumber)
	assert.NotEmpty(t, fired[0].ID)
	assert.True(t, decimal.NewFromInt(1000).Equal(fired[0].Threshold))

	assert.Empty(t, e.Evaluate(reading(900, 0, 0, -100, true)), "still breached, no repeat")
	assert.Empty(t, e.Evaluate(reading(1200, 0, 0, 0, true)), "recovered")
	assert.Len(t, e.Evaluate(reading(990, 0, 0, -10, true)), 1, "breached again")
}

func TestEvaluatorRules(t *testing.T) {
	e := NewEvaluator(config.AlertsConfig{
		MarginPercentBelow:  200,
		LossBeyond:          -500,
		AutotradingDisabled: true,
	})

	fired := e.Evaluate(reading(10000, 0, 0, -100, true))
	assert.Empty(t, fired, "no margin used means margin rule does not apply")

	fired = e.Evaluate(reading(10000, 5000, 150, -600, false))
	rules := make([]string, 0, len(fired))
	for _, a := range fired {
		rules = append(rules, a.Rule)
	}
	assert.ElementsMatch(t, []string{RuleMarginPercentBelow, RuleLossBeyond, RuleAutotradingDisabled}, rules)
}

func TestEvaluatorForget(t *testing.T) {
	e := NewEvaluator(config.AlertsConfig{AutotradingDisabled: true})
	require.Len(t, e.Evaluate(reading(1, 0, 0, 0, false)), 1)
	e.Forget(42)
	assert.Len(t, e.Evaluate(reading(1, 0, 0, 0, false)), 1)
}
