package accounts

import "github.com/cleared-dev/ledger/internal/model"

// DefaultChart returns a starter chart of accounts. Unknown names fall back
// to the small business chart.
func DefaultChart(name string) []ChartRow {
	switch name {
	case "small_business":
		return smallBusinessChart()
	default:
		return smallBusinessChart()
	}
}

func smallBusinessChart() []ChartRow {
	return []ChartRow{
		{Code: "1000", Name: "Assets", Type: model.AccountTypeAsset},
		{Code: "1010", Name: "Business Checking", Type: model.AccountTypeAsset, ParentCode: "1000", Description: "Primary checking account"},
		{Code: "1020", Name: "Business Savings", Type: model.AccountTypeAsset, ParentCode: "1000", Description: "Savings account"},
		{Code: "1100", Name: "Accounts Receivable", Type: model.AccountTypeAsset, ParentCode: "1000"},
		{Code: "1900", Name: "Suspense", Type: model.AccountTypeAsset, ParentCode: "1000", Description: "Uncategorized bank activity"},
		{Code: "2000", Name: "Liabilities", Type: model.AccountTypeLiability},
		{Code: "2010", Name: "Credit Card", Type: model.AccountTypeLiability, ParentCode: "2000", Description: "Business credit card"},
		{Code: "2100", Name: "Accounts Payable", Type: model.AccountTypeLiability, ParentCode: "2000"},
		{Code: "3000", Name: "Equity", Type: model.AccountTypeEquity},
		{Code: "3010", Name: "Owner's Equity", Type: model.AccountTypeEquity, ParentCode: "3000", Description: "Owner's equity"},
		{Code: "3020", Name: "Retained Earnings", Type: model.AccountTypeEquity, ParentCode: "3000"},
		{Code: "4000", Name: "Revenue", Type: model.AccountTypeRevenue},
		{Code: "4010", Name: "Service Revenue", Type: model.AccountTypeRevenue, ParentCode: "4000"},
		{Code: "4020", Name: "Product Revenue", Type: model.AccountTypeRevenue, ParentCode: "4000"},
		{Code: "5000", Name: "Expenses", Type: model.AccountTypeExpense},
		{Code: "5010", Name: "Advertising & Marketing", Type: model.AccountTypeExpense, ParentCode: "5000", Description: "Advertising costs"},
		{Code: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense, ParentCode: "5000", Description: "Software subscriptions"},
		{Code: "5030", Name: "Office Supplies", Type: model.AccountTypeExpense, ParentCode: "5000", Description: "Office supplies and expenses"},
		{Code: "5040", Name: "Professional Services", Type: model.AccountTypeExpense, ParentCode: "5000", Description: "Legal, accounting, consulting"},
		{Code: "5050", Name: "Shipping & Postage", Type: model.AccountTypeExpense, ParentCode: "5000", Description: "Postage and shipping costs"},
	}
}
