package models

// CanonicalField is a normalized, formula-facing financial quantity independent
// of the column name it was read from.
type CanonicalField string

const (
	FieldPeriod              CanonicalField = "period"
	FieldRevenue             CanonicalField = "revenue"
	FieldCost                CanonicalField = "cost"
	FieldCOGS                CanonicalField = "cogs"
	FieldOperatingExpenses   CanonicalField = "operating_expenses"
	FieldDepreciation        CanonicalField = "depreciation"
	FieldAmortization        CanonicalField = "amortization"
	FieldNetIncome           CanonicalField = "net_income"
	FieldOperatingIncome     CanonicalField = "operating_income"
	FieldInterestExpense     CanonicalField = "interest_expense"
	FieldInvestment          CanonicalField = "investment"
	FieldFinalValue          CanonicalField = "final_value"
	FieldCashFlow            CanonicalField = "cash_flow"
	FieldOperatingCashFlow   CanonicalField = "operating_cash_flow"
	FieldEquity              CanonicalField = "equity"
	FieldDebt                CanonicalField = "debt"
	FieldLiabilities         CanonicalField = "liabilities"
	FieldAssets              CanonicalField = "assets"
	FieldCurrentAssets       CanonicalField = "current_assets"
	FieldCurrentLiabilities  CanonicalField = "current_liabilities"
	FieldCash                CanonicalField = "cash"
	FieldReceivables         CanonicalField = "receivables"
	FieldInventory           CanonicalField = "inventory"
	FieldDiscountRate        CanonicalField = "discount_rate"
	FieldCostOfEquity        CanonicalField = "cost_of_equity"
	FieldCostOfDebt          CanonicalField = "cost_of_debt"
	FieldTaxRate             CanonicalField = "tax_rate"
	FieldFixedCosts          CanonicalField = "fixed_costs"
	FieldUnitPrice           CanonicalField = "unit_price"
	FieldVariableCostPerUnit CanonicalField = "variable_cost_per_unit"
	FieldStoreSqFt           CanonicalField = "store_sq_ft"
	FieldTransactions        CanonicalField = "transactions"
	FieldMarketingCost       CanonicalField = "marketing_cost"
	FieldNewCustomers        CanonicalField = "new_customers"
	FieldCustomers           CanonicalField = "customers"
	FieldCustomerLifespan    CanonicalField = "customer_lifespan"
	FieldBillableHours       CanonicalField = "billable_hours"
	FieldTotalHours          CanonicalField = "total_hours"
	FieldUnitsProduced       CanonicalField = "units_produced"
	FieldCapacity            CanonicalField = "capacity"
	FieldDefectiveUnits      CanonicalField = "defective_units"
	FieldTotalUnits          CanonicalField = "total_units"
	FieldPortfolioReturn     CanonicalField = "portfolio_return"
	FieldRiskFreeRate        CanonicalField = "risk_free_rate"
	FieldReturnStdDev        CanonicalField = "return_std_dev"
	FieldAssetCount          CanonicalField = "asset_count"
	FieldAvgCorrelation      CanonicalField = "avg_correlation"
)

// FieldKind decides how values of a field collapse across periods.
type FieldKind string

const (
	KindFlow      FieldKind = "flow"      // summed over periods
	KindStock     FieldKind = "stock"     // latest period wins
	KindRate      FieldKind = "rate"      // latest period wins
	KindCount     FieldKind = "count"     // summed over periods
	KindDimension FieldKind = "dimension" // not numeric
)

// fieldOrder is the fixed priority order used whenever two canonical fields
// compete for the same column.
var fieldOrder = []CanonicalField{
	FieldPeriod,
	FieldRevenue,
	FieldCOGS,
	FieldOperatingExpenses,
	FieldCost,
	FieldDepreciation,
	FieldAmortization,
	FieldNetIncome,
	FieldOperatingIncome,
	FieldInterestExpense,
	FieldInvestment,
	FieldFinalValue,
	FieldOperatingCashFlow,
	FieldCashFlow,
	FieldEquity,
	FieldDebt,
	FieldCurrentLiabilities,
	FieldLiabilities,
	FieldCurrentAssets,
	FieldAssets,
	FieldCash,
	FieldReceivables,
	FieldInventory,
	FieldDiscountRate,
	FieldCostOfEquity,
	FieldCostOfDebt,
	FieldTaxRate,
	FieldFixedCosts,
	FieldUnitPrice,
	FieldVariableCostPerUnit,
	FieldStoreSqFt,
	FieldTransactions,
	FieldMarketingCost,
	FieldNewCustomers,
	FieldCustomers,
	FieldCustomerLifespan,
	FieldBillableHours,
	FieldTotalHours,
	FieldUnitsProduced,
	FieldCapacity,
	FieldDefectiveUnits,
	FieldTotalUnits,
	FieldPortfolioReturn,
	FieldRiskFreeRate,
	FieldReturnStdDev,
	FieldAssetCount,
	FieldAvgCorrelation,
}

var fieldKinds = map[CanonicalField]FieldKind{
	FieldPeriod:              KindDimension,
	FieldRevenue:             KindFlow,
	FieldCost:                KindFlow,
	FieldCOGS:                KindFlow,
	FieldOperatingExpenses:   KindFlow,
	FieldDepreciation:        KindFlow,
	FieldAmortization:        KindFlow,
	FieldNetIncome:           KindFlow,
	FieldOperatingIncome:     KindFlow,
	FieldInterestExpense:     KindFlow,
	FieldInvestment:          KindStock,
	FieldFinalValue:          KindStock,
	FieldCashFlow:            KindFlow,
	FieldOperatingCashFlow:   KindFlow,
	FieldEquity:              KindStock,
	FieldDebt:                KindStock,
	FieldLiabilities:         KindStock,
	FieldAssets:              KindStock,
	FieldCurrentAssets:       KindStock,
	FieldCurrentLiabilities:  KindStock,
	FieldCash:                KindStock,
	FieldReceivables:         KindStock,
	FieldInventory:           KindStock,
	FieldDiscountRate:        KindRate,
	FieldCostOfEquity:        KindRate,
	FieldCostOfDebt:          KindRate,
	FieldTaxRate:             KindRate,
	FieldFixedCosts:          KindFlow,
	FieldUnitPrice:           KindRate,
	FieldVariableCostPerUnit: KindRate,
	FieldStoreSqFt:           KindStock,
	FieldTransactions:        KindCount,
	FieldMarketingCost:       KindFlow,
	FieldNewCustomers:        KindCount,
	FieldCustomers:           KindStock,
	FieldCustomerLifespan:    KindRate,
	FieldBillableHours:       KindCount,
	FieldTotalHours:          KindCount,
	FieldUnitsProduced:       KindCount,
	FieldCapacity:            KindCount,
	FieldDefectiveUnits:      KindCount,
	FieldTotalUnits:          KindCount,
	FieldPortfolioReturn:     KindRate,
	FieldRiskFreeRate:        KindRate,
	FieldReturnStdDev:        KindRate,
	FieldAssetCount:          KindStock,
	FieldAvgCorrelation:      KindRate,
}

// AllCanonicalFields returns every canonical field in priority order.
func AllCanonicalFields() []CanonicalField {
	out := make([]CanonicalField, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Kind returns the aggregation kind of the field. Unknown fields are treated as flows.
func (f CanonicalField) Kind() FieldKind {
	if k, ok := fieldKinds[f]; ok {
		return k
	}
	return KindFlow
}

// IsNumeric reports whether the field carries a number.
func (f CanonicalField) IsNumeric() bool {
	return f.Kind() != KindDimension
}

// Additive reports whether values of the field are summed when periods merge.
func (f CanonicalField) Additive() bool {
	k := f.Kind()
	return k == KindFlow || k == KindCount
}

// MatchMethod records how a column was resolved to a canonical field.
type MatchMethod string

const (
	MatchExact   MatchMethod = "exact"
	MatchSynonym MatchMethod = "synonym"
	MatchFuzzy   MatchMethod = "fuzzy"
)

// FieldMatch is the resolution of one canonical field.
type FieldMatch struct {
	Column     string      `json:"column"`
	Method     MatchMethod `json:"method"`
	Confidence float64     `json:"confidence"`
}

// FieldMapping maps canonical fields to source columns. It is immutable once
// built; accessors hand out copies.
type FieldMapping struct {
	matches  map[CanonicalField]FieldMatch
	unmapped []string
}

// NewFieldMapping builds a mapping from the given matches and unmatched columns.
func NewFieldMapping(matches map[CanonicalField]FieldMatch, unmapped []string) FieldMapping {
	m := make(map[CanonicalField]FieldMatch, len(matches))
	for k, v := range matches {
		m[k] = v
	}
	u := make([]string, len(unmapped))
	copy(u, unmapped)
	return FieldMapping{matches: m, unmapped: u}
}

// Lookup returns the match for a field, if any.
func (m FieldMapping) Lookup(field CanonicalField) (FieldMatch, bool) {
	match, ok := m.matches[field]
	return match, ok
}

// Has reports whether the field is mapped.
func (m FieldMapping) Has(field CanonicalField) bool {
	_, ok := m.matches[field]
	return ok
}

// Column returns the source column for a field, or "" when unmapped.
func (m FieldMapping) Column(field CanonicalField) string {
	return m.matches[field].Column
}

// Len returns the number of mapped fields.
func (m FieldMapping) Len() int {
	return len(m.matches)
}

// Fields returns the mapped fields in priority order.
func (m FieldMapping) Fields() []CanonicalField {
	out := make([]CanonicalField, 0, len(m.matches))
	for _, f := range fieldOrder {
		if _, ok := m.matches[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Matches returns a copy of all matches.
func (m FieldMapping) Matches() map[CanonicalField]FieldMatch {
	out := make(map[CanonicalField]FieldMatch, len(m.matches))
	for k, v := range m.matches {
		out[k] = v
	}
	return out
}

// Unmapped returns the columns that did not resolve to any field.
func (m FieldMapping) Unmapped() []string {
	out := make([]string, len(m.unmapped))
	copy(out, m.unmapped)
	return out
}

// FieldMappingView is the wire form of a FieldMapping.
type FieldMappingView struct {
	Fields   map[CanonicalField]FieldMatch `json:"fields"`
	Unmapped []string                      `json:"unmapped"`
}

// View returns the serializable form of the mapping.
func (m FieldMapping) View() FieldMappingView {
	return FieldMappingView{Fields: m.Matches(), Unmapped: m.Unmapped()}
}

// MappingFromView rebuilds a mapping from its wire form.
func MappingFromView(v FieldMappingView) FieldMapping {
	return NewFieldMapping(v.Fields, v.Unmapped)
}
