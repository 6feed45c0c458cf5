package services

import "github.com/irfndi/finmetrics-go/internal/models"

// SynonymTable lists alternate header spellings per canonical field. Entries
// are compared after normalization, so "Owner_Capital" and "owner capital"
// are the same synonym.
type SynonymTable map[models.CanonicalField][]string

// DefaultSynonymTable returns the built-in header vocabulary.
func DefaultSynonymTable() SynonymTable {
	return SynonymTable{
		models.FieldPeriod:              {"date", "month", "year", "quarter", "fiscal_year", "fiscal_period", "month_year", "week", "time_period"},
		models.FieldRevenue:             {"sales", "total_sales", "turnover", "income", "total_revenue", "gross_sales", "net_sales", "revenues", "top_line", "sales_revenue"},
		models.FieldCost:                {"costs", "total_cost", "total_costs", "expenses", "total_expenses", "expenditure", "spend", "expense"},
		models.FieldCOGS:                {"cost_of_goods_sold", "cost_of_sales", "cost_of_goods", "direct_costs"},
		models.FieldOperatingExpenses:   {"opex", "operating_expense", "operating_costs", "sga", "sg&a"},
		models.FieldDepreciation:        {"depr", "depreciation_expense"},
		models.FieldAmortization:        {"amortisation", "amort", "amortization_expense"},
		models.FieldNetIncome:           {"net_profit", "profit_after_tax", "pat", "net_earnings", "profit", "earnings"},
		models.FieldOperatingIncome:     {"ebit", "operating_profit"},
		models.FieldInterestExpense:     {"interest", "interest_paid", "finance_costs", "interest_cost"},
		models.FieldInvestment:          {"initial_investment", "capex", "capital_investment", "investment_amount", "outlay", "initial_outlay"},
		models.FieldFinalValue:          {"ending_value", "exit_value", "terminal_value", "current_value", "end_value"},
		models.FieldCashFlow:            {"cashflow", "net_cash_flow", "cash_flows", "cashflows", "fcf", "free_cash_flow"},
		models.FieldOperatingCashFlow:   {"ocf", "cash_from_operations", "operating_cashflow", "cfo"},
		models.FieldEquity:              {"owner_capital", "owners_capital", "owners_equity", "shareholders_equity", "stockholders_equity", "total_equity", "net_worth", "capital", "share_capital"},
		models.FieldDebt:                {"total_debt", "borrowings", "loans", "long_term_debt", "debts"},
		models.FieldLiabilities:         {"total_liabilities", "liability"},
		models.FieldAssets:              {"total_assets", "asset"},
		models.FieldCurrentAssets:       {"current_asset", "ca"},
		models.FieldCurrentLiabilities:  {"current_liability", "cl"},
		models.FieldCash:                {"cash_and_equivalents", "cash_balance", "bank_balance", "cash_equivalents"},
		models.FieldReceivables:         {"accounts_receivable", "debtors", "ar", "trade_receivables"},
		models.FieldInventory:           {"stock", "inventory_value", "avg_inventory", "average_inventory", "stock_value"},
		models.FieldDiscountRate:        {"discount", "hurdle_rate", "required_return"},
		models.FieldCostOfEquity:        {"re", "equity_cost", "required_return_on_equity"},
		models.FieldCostOfDebt:          {"rd", "interest_rate", "debt_cost"},
		models.FieldTaxRate:             {"tax", "corporate_tax_rate", "tc", "effective_tax_rate"},
		models.FieldFixedCosts:          {"fixed_cost", "overheads", "fixed_expenses", "overhead"},
		models.FieldUnitPrice:           {"price", "price_per_unit", "selling_price", "sale_price"},
		models.FieldVariableCostPerUnit: {"variable_cost", "unit_variable_cost", "variable_costs"},
		models.FieldStoreSqFt:           {"store_sqft", "sq_ft", "sqft", "square_feet", "store_area", "floor_area", "store_size"},
		models.FieldTransactions:        {"transaction_count", "num_transactions", "orders", "receipts", "order_count", "transaction"},
		models.FieldMarketingCost:       {"marketing", "marketing_spend", "advertising", "ad_spend", "marketing_expense"},
		models.FieldNewCustomers:        {"customers_acquired", "new_clients", "acquired_customers", "new_customer"},
		models.FieldCustomers:           {"customer_count", "total_customers", "clients", "active_customers", "num_customers"},
		models.FieldCustomerLifespan:    {"lifespan", "customer_lifetime", "retention_years", "avg_customer_lifespan"},
		models.FieldBillableHours:       {"billable", "billed_hours", "billable_hrs"},
		models.FieldTotalHours:          {"hours", "available_hours", "hours_available", "total_hrs", "hours_worked"},
		models.FieldUnitsProduced:       {"production", "output", "units", "actual_output", "units_manufactured", "production_units"},
		models.FieldCapacity:            {"production_capacity", "max_capacity", "capacity_units"},
		models.FieldDefectiveUnits:      {"defects", "defective", "rejected_units", "rejects", "defect_count"},
		models.FieldTotalUnits:          {"units_inspected", "total_output", "total_units_produced", "inspected_units"},
		models.FieldPortfolioReturn:     {"return", "returns", "portfolio_returns", "annual_return"},
		models.FieldRiskFreeRate:        {"rf", "risk_free", "treasury_rate", "riskfree_rate"},
		models.FieldReturnStdDev:        {"volatility", "std_dev", "standard_deviation", "stdev", "sigma"},
		models.FieldAssetCount:          {"num_assets", "number_of_assets", "holdings", "positions", "assets_held"},
		models.FieldAvgCorrelation:      {"correlation", "avg_corr", "average_correlation", "mean_correlation"},
	}
}

// fuzzyExclusions lists headers that name a different measure than a field
// they closely resemble. They never fuzzy-match that field.
var fuzzyExclusions = map[models.CanonicalField][]string{
	models.FieldNetIncome:           {"gross_profit", "gross_income", "gross_margin", "operating_profit", "profit_margin"},
	models.FieldOperatingIncome:     {"ebitda", "ebitda_margin", "operating_margin"},
	models.FieldVariableCostPerUnit: {"cost_per_unit", "average_cost_per_unit"},
	models.FieldCashFlow:            {"cash_flow_margin"},
}

// industryRequiredFields declares, per industry, the fields whose presence
// votes for that industry.
var industryRequiredFields = map[models.IndustryTag][]models.CanonicalField{
	models.IndustryRetail: {
		models.FieldCOGS, models.FieldInventory, models.FieldStoreSqFt, models.FieldTransactions,
	},
	models.IndustryService: {
		models.FieldMarketingCost, models.FieldNewCustomers, models.FieldBillableHours,
		models.FieldTotalHours, models.FieldCustomers, models.FieldCustomerLifespan,
	},
	models.IndustryManufacturing: {
		models.FieldUnitsProduced, models.FieldCapacity, models.FieldDefectiveUnits, models.FieldTotalUnits,
	},
	models.IndustryFinance: {
		models.FieldPortfolioReturn, models.FieldRiskFreeRate, models.FieldReturnStdDev,
		models.FieldAssetCount, models.FieldAvgCorrelation,
	},
}

// IndustryRequiredFields returns the classification fields of an industry.
func IndustryRequiredFields(industry models.IndustryTag) []models.CanonicalField {
	fields := industryRequiredFields[industry]
	out := make([]models.CanonicalField, len(fields))
	copy(out, fields)
	return out
}
