package core

// Summary aggregates a set of transactions.
type Summary struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
	Count   int   `json:"count"`
}

// Summarize totals income and expense over txs.
// Callers pass the already-limited page so the figures describe exactly what is returned.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	s.Count = len(txs)
	return s
}
