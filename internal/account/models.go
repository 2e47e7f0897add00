package account

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Monetary values are rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Metrics is the point-in-time state reported by the terminal. History
// entries embed the same columns.
type Metrics struct {
	Balance       decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null" json:"balance" mapstructure:"balance"`
	Equity        decimal.Decimal `gorm:"column:equity;type:numeric(20,2);not null" json:"equity" mapstructure:"equity"`
	MarginUsed    decimal.Decimal `gorm:"column:margin_used;type:numeric(20,2);not null" json:"margin_used" mapstructure:"margin_used"`
	FreeMargin    decimal.Decimal `gorm:"column:free_margin;type:numeric(20,2);not null" json:"free_margin" mapstructure:"free_margin"`
	MarginPercent decimal.Decimal `gorm:"column:margin_percent;type:numeric(20,2);not null" json:"margin_percent" mapstructure:"margin_percent"`
	ProfitLoss    decimal.Decimal `gorm:"column:profit_loss;type:numeric(20,2);not null" json:"profit_loss" mapstructure:"profit_loss"`

	RealizedPLDaily   decimal.Decimal `gorm:"column:realized_pl_daily;type:numeric(20,2);not null" json:"realized_pl_daily" mapstructure:"realized_pl_daily"`
	RealizedPLWeekly  decimal.Decimal `gorm:"column:realized_pl_weekly;type:numeric(20,2);not null" json:"realized_pl_weekly" mapstructure:"realized_pl_weekly"`
	RealizedPLMonthly decimal.Decimal `gorm:"column:realized_pl_monthly;type:numeric(20,2);not null" json:"realized_pl_monthly" mapstructure:"realized_pl_monthly"`
	RealizedPLYearly  decimal.Decimal `gorm:"column:realized_pl_yearly;type:numeric(20,2);not null" json:"realized_pl_yearly" mapstructure:"realized_pl_yearly"`
	RealizedPLAllTime decimal.Decimal `gorm:"column:realized_pl_alltime;type:numeric(20,2);not null" json:"realized_pl_alltime" mapstructure:"realized_pl_alltime"`

	DepositsDaily   decimal.Decimal `gorm:"column:deposits_daily;type:numeric(20,2);not null" json:"deposits_daily" mapstructure:"deposits_daily"`
	DepositsWeekly  decimal.Decimal `gorm:"column:deposits_weekly;type:numeric(20,2);not null" json:"deposits_weekly" mapstructure:"deposits_weekly"`
	DepositsMonthly decimal.Decimal `gorm:"column:deposits_monthly;type:numeric(20,2);not null" json:"deposits_monthly" mapstructure:"deposits_monthly"`
	DepositsYearly  decimal.Decimal `gorm:"column:deposits_yearly;type:numeric(20,2);not null" json:"deposits_yearly" mapstructure:"deposits_yearly"`
	DepositsAllTime decimal.Decimal `gorm:"column:deposits_alltime;type:numeric(20,2);not null" json:"deposits_alltime" mapstructure:"deposits_alltime"`

	WithdrawalsDaily   decimal.Decimal `gorm:"column:withdrawals_daily;type:numeric(20,2);not null" json:"withdrawals_daily" mapstructure:"withdrawals_daily"`
	WithdrawalsWeekly  decimal.Decimal `gorm:"column:withdrawals_weekly;type:numeric(20,2);not null" json:"withdrawals_weekly" mapstructure:"withdrawals_weekly"`
	WithdrawalsMonthly decimal.Decimal `gorm:"column:withdrawals_monthly;type:numeric(20,2);not null" json:"withdrawals_monthly" mapstructure:"withdrawals_monthly"`
	WithdrawalsYearly  decimal.Decimal `gorm:"column:withdrawals_yearly;type:numeric(20,2);not null" json:"withdrawals_yearly" mapstructure:"withdrawals_yearly"`
	WithdrawalsAllTime decimal.Decimal `gorm:"column:withdrawals_alltime;type:numeric(20,2);not null" json:"withdrawals_alltime" mapstructure:"withdrawals_alltime"`

	HoldingFeeDaily   decimal.Decimal `gorm:"column:holding_fee_daily;type:numeric(20,2);not null" json:"holding_fee_daily" mapstructure:"holding_fee_daily"`
	HoldingFeeWeekly  decimal.Decimal `gorm:"column:holding_fee_weekly;type:numeric(20,2);not null" json:"holding_fee_weekly" mapstructure:"holding_fee_weekly"`
	HoldingFeeMonthly decimal.Decimal `gorm:"column:holding_fee_monthly;type:numeric(20,2);not null" json:"holding_fee_monthly" mapstructure:"holding_fee_monthly"`
	HoldingFeeYearly  decimal.Decimal `gorm:"column:holding_fee_yearly;type:numeric(20,2);not null" json:"holding_fee_yearly" mapstructure:"holding_fee_yearly"`
	HoldingFeeAllTime decimal.Decimal `gorm:"column:holding_fee_alltime;type:numeric(20,2);not null" json:"holding_fee_alltime" mapstructure:"holding_fee_alltime"`

	SwapDaily   decimal.Decimal `gorm:"column:swap_daily;type:numeric(20,2);not null" json:"swap_daily" mapstructure:"swap_daily"`
	SwapWeekly  decimal.Decimal `gorm:"column:swap_weekly;type:numeric(20,2);not null" json:"swap_weekly" mapstructure:"swap_weekly"`
	SwapMonthly decimal.Decimal `gorm:"column:swap_monthly;type:numeric(20,2);not null" json:"swap_monthly" mapstructure:"swap_monthly"`
	SwapYearly  decimal.Decimal `gorm:"column:swap_yearly;type:numeric(20,2);not null" json:"swap_yearly" mapstructure:"swap_yearly"`
	SwapAllTime decimal.Decimal `gorm:"column:swap_alltime;type:numeric(20,2);not null" json:"swap_alltime" mapstructure:"swap_alltime"`

	OpenCharts  int  `gorm:"column:open_charts;not null" json:"open_charts" mapstructure:"open_charts"`
	EmptyCharts int  `gorm:"column:empty_charts;not null" json:"empty_charts" mapstructure:"empty_charts"`
	OpenTrades  int  `gorm:"column:open_trades;not null" json:"open_trades" mapstructure:"open_trades"`
	Autotrading bool `gorm:"column:autotrading;not null" json:"autotrading" mapstructure:"autotrading"`
}

// Snapshot is the latest reported state of one trading account. There is at
// most one row per account number.
type Snapshot struct {
	AccountNumber int64     `gorm:"column:account_number;primaryKey;autoIncrement:false" json:"account_number" mapstructure:"account_number"`
	Broker        string    `gorm:"column:broker;type:varchar(255);not null;index" json:"broker" mapstructure:"broker"`
	Metrics       `gorm:"embedded" mapstructure:",squash"`
	CreatedAt     time.Time `json:"created_at" mapstructure:"-"`
	UpdatedAt     time.Time `json:"updated_at" mapstructure:"-"`
}

func (Snapshot) TableName() string {
	return "accounts"
}

// BrokerSummary aggregates the accounts of one broker.
type BrokerSummary struct {
	Broker          string          `gorm:"column:broker" json:"broker"`
	Accounts        int64           `gorm:"column:accounts" json:"accounts"`
	TotalBalance    decimal.Decimal `gorm:"column:total_balance" json:"total_balance"`
	TotalEquity     decimal.Decimal `gorm:"column:total_equity" json:"total_equity"`
	TotalProfitLoss decimal.Decimal `gorm:"column:total_profit_loss" json:"total_profit_loss"`
	TotalRealizedPL decimal.Decimal `gorm:"column:total_realized_pl" json:"total_realized_pl"`
}

// MarginBucket counts accounts in one margin-health band.
type MarginBucket struct {
	Bucket   string `gorm:"column:bucket" json:"bucket"`
	Accounts int64  `gorm:"column:accounts" json:"accounts"`
}

// Analytics is the aggregate view served to the dashboard.
type Analytics struct {
	Window       string          `json:"window"`
	Brokers      []BrokerSummary `json:"brokers"`
	TopAccounts  []Snapshot      `json:"top_accounts"`
	MarginHealth []MarginBucket  `json:"margin_health"`
}
