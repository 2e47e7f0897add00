package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohdghattas/mt4-online-server/internal/config"
)

// Rule names
const (
	RuleEquityBelow         = "equity_below"
	RuleMarginPercentBelow  = "margin_percent_below"
	RuleLossBeyond          = "loss_beyond"
	RuleAutotradingDisabled = "autotrading_disabled"
)

// Reading is the subset of an account snapshot the rules look at.
type Reading struct {
	AccountNumber int64
	Broker        string
	Equity        decimal.Decimal
	MarginUsed    decimal.Decimal
	MarginPercent decimal.Decimal
	ProfitLoss    decimal.Decimal
	Autotrading   bool
}

// Alert is emitted when an account enters a breached state.
type Alert struct {
	ID            string          `json:"id"`
	AccountNumber int64           `json:"account_number"`
	Broker        string          `json:"broker"`
	Rule          string          `json:"rule"`
	Message       string          `json:"message"`
	Value         decimal.Decimal `json:"value"`
	Threshold     decimal.Decimal `json:"threshold"`
	TriggeredAt   time.Time       `json:"triggered_at"`
}

// Evaluator checks readings against threshold rules. An alert fires once when
// a rule starts failing for an account and re-arms when the account recovers.
type Evaluator struct {
	equityBelow         decimal.Decimal
	marginPercentBelow  decimal.Decimal
	lossBeyond          decimal.Decimal
	autotradingDisabled bool

	mu       sync.Mutex
	breached map[int64]map[string]bool
	now      func() time.Time
}

func NewEvaluator(cfg config.AlertsConfig) *Evaluator {
	return &Evaluator{
		equityBelow:         decimal.NewFromFloat(cfg.EquityBelow),
		marginPercentBelow:  decimal.NewFromFloat(cfg.MarginPercentBelow),
		lossBeyond:          decimal.NewFromFloat(cfg.LossBeyond).Abs(),
		autotradingDisabled: cfg.AutotradingDisabled,
		breached:            make(map[int64]map[string]bool),
		now:                 time.Now,
	}
}

// Enabled reports whether any rule is configured.
func (e *Evaluator) Enabled() bool {
	if e == nil {
		return false
	}
	return e.equityBelow.IsPositive() ||
		e.marginPercentBelow.IsPositive() ||
		e.lossBeyond.IsPositive() ||
		e.autotradingDisabled
}

// Evaluate returns the alerts that newly fire for r.
func (e *Evaluator) Evaluate(r Reading) []Alert {
	if !e.Enabled() {
		return nil
	}

	type check struct {
		rule      string
		failing   bool
		value     decimal.Decimal
		threshold decimal.Decimal
		message   string
	}

	checks := make([]check, 0, 4)
	if e.equityBelow.IsPositive() {
		checks = append(checks, check{
			rule:      RuleEquityBelow,
			failing:   r.Equity.LessThan(e.equityBelow),
			value:     r.Equity,
			threshold: e.equityBelow,
			message:   fmt.Sprintf("equity %s below %s", r.Equity.StringFixed(2), e.equityBelow.StringFixed(2)),
		})
	}
	if e.marginPercentBelow.IsPositive() {
		checks = append(checks, check{
			rule:      RuleMarginPercentBelow,
			failing:   r.MarginUsed.IsPositive() && r.MarginPercent.LessThan(e.marginPercentBelow),
			value:     r.MarginPercent,
			threshold: e.marginPercentBelow,
			message:   fmt.Sprintf("margin level %s%% below %s%%", r.MarginPercent.StringFixed(2), e.marginPercentBelow.StringFixed(2)),
		})
	}
	if e.lossBeyond.IsPositive() {
		checks = append(checks, check{
			rule:      RuleLossBeyond,
			failing:   r.ProfitLoss.LessThan(e.lossBeyond.Neg()),
			value:     r.ProfitLoss,
			threshold: e.lossBeyond.Neg(),
			message:   fmt.Sprintf("floating loss %s beyond %s", r.ProfitLoss.StringFixed(2), e.lossBeyond.Neg().StringFixed(2)),
		})
	}
	if e.autotradingDisabled {
		checks = append(checks, check{
			rule:    RuleAutotradingDisabled,
			failing: !r.Autotrading,
			message: "autotrading is disabled",
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.breached[r.AccountNumber]
	if !ok {
		state = make(map[string]bool)
		e.breached[r.AccountNumber] = state
	}

	var fired []Alert
	for _, c := range checks {
		was := state[c.rule]
		state[c.rule] = c.failing
		if !c.failing || was {
			continue
		}
		fired = append(fired, Alert{
			ID:            uuid.New().String(),
			AccountNumber: r.AccountNumber,
			Broker:        r.Broker,
			Rule:          c.rule,
			Message:       c.message,
			Value:         c.value,
			Threshold:     c.threshold,
			TriggeredAt:   e.now().UTC(),
		})
	}
	return fired
}

// Forget drops the breach state of an account, e.g. after it was swept.
func (e *Evaluator) Forget(accountNumber int64) {
	if e == nil {
		return
	}
	e.mu.Lock()
	delete(e.breached, accountNumber)
	e.mu.Unlock()
}
