package core

import "time"

// Seed is the starter data provisioned for a newly registered user.
type Seed struct {
	IncomeTypes       []Category
	ExpenseCategories []Category
	Accounts          []BankAccount
}

type seedCategory struct {
	name  string
	icon  Icon
	color string
}

var (
	defaultIncomeTypes = []seedCategory{
		{"Salary", IconBriefcase, "#10B981"},
		{"Freelance", IconZap, "#8B5CF6"},
		{"Business", IconTrendingUp, "#F59E0B"},
		{"Investment", IconPieChart, "#3B82F6"},
		{"Other Income", IconDollarSign, "#10B981"},
	}

	defaultExpenseCategories = []seedCategory{
		{"Food & Dining", IconUtensilsCrossed, "#EF4444"},
		{"Transportation", IconCar, "#F59E0B"},
		{"Shopping", IconShoppingCart, "#EC4899"},
		{"Entertainment", IconGamepad2, "#8B5CF6"},
		{"Bills & Utilities", IconReceipt, "#EF4444"},
		{"Healthcare", IconHeart, "#DC2626"},
		{"Education", IconGraduationCap, "#3B82F6"},
		{"Other Expense", IconMoreHorizontal, "#6B7280"},
	}
)

// DefaultSeed builds the starter categories and the Cash account for userID.
// newID is called once per created row.
func DefaultSeed(userID string, newID func() string, now time.Time) Seed {
	now = now.UTC()
	build := func(kind CategoryKind, defs []seedCategory) []Category {
		out := make([]Category, 0, len(defs))
		for i, d := range defs {
			out = append(out, Category{
				ID:        newID(),
				UserID:    userID,
				Kind:      kind,
				Name:      d.name,
				Icon:      d.icon,
				Color:     d.color,
				SortOrder: i,
				Enabled:   true,
				CreatedAt: now,
			})
		}
		return out
	}
	return Seed{
		IncomeTypes:       build(IncomeKind, defaultIncomeTypes),
		ExpenseCategories: build(ExpenseKind, defaultExpenseCategories),
		Accounts: []BankAccount{{
			ID:        newID(),
			UserID:    userID,
			Name:      "Cash",
			Type:      Checking,
			Currency:  DefaultCurrency,
			Color:     DefaultAccountColor,
			Icon:      IconWallet,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}},
	}
}
