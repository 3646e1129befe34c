package ledger

import "alice/internal/core"

// DefaultLayout is the dashboard arrangement given to users without a valid
// saved layout.
func DefaultLayout() *core.DashboardLayout {
	return &core.DashboardLayout{
		Main: []core.DashboardWidget{
			{ID: "summary", Component: "SummaryCards", Column: "main", Order: 1, Visible: true},
			{ID: "spending-chart", Component: "SpendingChart", Column: "main", Order: 2, Visible: true},
			{ID: "add-transaction", Component: "TransactionFormToggler", Column: "main", Order: 3, Visible: true},
			{ID: "upcoming-bills", Component: "UpcomingBills", Column: "main", Order: 4, Visible: true},
			{ID: "proactive-insight", Component: "ProactiveInsight", Column: "main", Order: 5, Visible: true},
			{ID: "transaction-history", Component: "TransactionHistory", Column: "main", Order: 6, Visible: true},
		},
		Aside: []core.DashboardWidget{
			{ID: "savings-goals", Component: "SavingsGoals", Column: "aside", Order: 1, Visible: true},
			{ID: "ai-advisor", Component: "AiAdvisor", Column: "aside", Order: 2, Visible: true},
		},
	}
}

// TestUser is the demo account seeded on first start.
func TestUser() core.User {
	return core.User{
		Email:                  "test.family@alice.com",
		Mode:                   core.ModeFamily,
		FamilyName:             "Test",
		FamilyComposition:      &core.FamilyComposition{Adults: 2, Teens: 1, Children: 2},
		HasCompletedOnboarding: true,
		DashboardLayout:        DefaultLayout(),
	}
}
