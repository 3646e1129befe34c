package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthSummary holds the monthly aggregates shown on the dashboard.
// Balance is realized income minus real expenses; planned entries are excluded.
type MonthSummary struct {
	Month           string           `json:"month"`
	Income          Money            `json:"income"`
	RealExpenses    Money            `json:"realExpenses"`
	PlannedExpenses Money            `json:"plannedExpenses"`
	Balance         Money            `json:"balance"`
	IncomeTxns      []Transaction    `json:"incomeTransactions"`
	RealTxns        []Transaction    `json:"realExpenseTransactions"`
	PlannedTxns     []Transaction    `json:"plannedExpenseTransactions"`
	ByCategory      []CategoryAmount `json:"byCategory"`
}
