package services

import (
	"io"
	"testing"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMapper() *SchemaMapper {
	return NewSchemaMapper(DefaultSynonymTable(), DefaultFuzzyThreshold, quietLogger())
}

func TestSchemaMapper_Normalize(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		input    string
		expected string
	}{
		{"EQUITY", "equity"},
		{"equity ", "equity"},
		{"Owner_Capital", "ownercapital"},
		{"Store Sq. Ft", "storesqft"},
		{"  Cost-of-Goods (Sold) ", "costofgoodssold"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.Normalize(tt.input))
		})
	}
}

func TestSchemaMapper_EquityVariants(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		header string
		method models.MatchMethod
	}{
		{"EQUITY", models.MatchExact},
		{"equity ", models.MatchExact},
		{"Owner_Capital", models.MatchSynonym},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			mapping := m.Map([]string{"Month", tt.header, "Revenue"})
			match, ok := mapping.Lookup(models.FieldEquity)
			require.True(t, ok)
			assert.Equal(t, tt.header, match.Column)
			assert.Equal(t, tt.method, match.Method)
		})
	}
}

func TestSchemaMapper_EverySynonymResolvesToItsField(t *testing.T) {
	table := DefaultSynonymTable()
	m := NewSchemaMapper(table, DefaultFuzzyThreshold, quietLogger())

	for field, synonyms := range table {
		for _, synonym := range synonyms {
			mapping := m.Map([]string{synonym})
			match, ok := mapping.Lookup(field)
			if assert.Truef(t, ok, "synonym %q should resolve to %s", synonym, field) {
				assert.Contains(t, []models.MatchMethod{models.MatchExact, models.MatchSynonym}, match.Method)
				assert.Equal(t, 1, mapping.Len(), "synonym %q resolved to more than one field", synonym)
			}
		}
	}
}

func TestSynonymTable_NormalizedEntriesAreUnambiguous(t *testing.T) {
	m := newTestMapper()
	owner := make(map[string]models.CanonicalField)

	for _, field := range models.AllCanonicalFields() {
		owner[m.Normalize(string(field))] = field
	}
	for field, synonyms := range DefaultSynonymTable() {
		for _, s := range synonyms {
			n := m.Normalize(s)
			if existing, ok := owner[n]; ok {
				assert.Equalf(t, field, existing, "%q is claimed by both %s and %s", s, existing, field)
				continue
			}
			owner[n] = field
		}
	}
}

func TestSchemaMapper_PassPriority(t *testing.T) {
	m := newTestMapper()

	t.Run("exact beats synonym for the same field", func(t *testing.T) {
		mapping := m.Map([]string{"Sales", "Revenue"})
		assert.Equal(t, "Revenue", mapping.Column(models.FieldRevenue))
		assert.Equal(t, []string{"Sales"}, mapping.Unmapped())
	})

	t.Run("first encountered column wins within a pass", func(t *testing.T) {
		mapping := m.Map([]string{"Turnover", "Sales"})
		assert.Equal(t, "Turnover", mapping.Column(models.FieldRevenue))
	})

	t.Run("header claimed at most once", func(t *testing.T) {
		mapping := m.Map([]string{"Revenue", "Revenue"})
		assert.Equal(t, 1, mapping.Len())
		assert.Empty(t, mapping.Unmapped())
	})

	t.Run("unmapped field is not an error", func(t *testing.T) {
		mapping := m.Map([]string{"Revenue"})
		assert.False(t, mapping.Has(models.FieldEquity))
		assert.Equal(t, "", mapping.Column(models.FieldEquity))
	})
}

func TestSchemaMapper_FuzzyMatching(t *testing.T) {
	m := newTestMapper()

	mapping := m.Map([]string{"Revenu", "Sales Amt"})
	match, ok := mapping.Lookup(models.FieldRevenue)
	require.True(t, ok)
	assert.Equal(t, "Revenu", match.Column)
	assert.Equal(t, models.MatchFuzzy, match.Method)
	assert.InDelta(t, 0.5+0.5*6.0/7.0, match.Confidence, 1e-9)

	strict := NewSchemaMapper(DefaultSynonymTable(), 0.95, quietLogger())
	strictMapping := strict.Map([]string{"Revenu"})
	assert.False(t, strictMapping.Has(models.FieldRevenue))
	assert.Equal(t, []string{"Revenu"}, strictMapping.Unmapped())

	t.Run("word aligned containment", func(t *testing.T) {
		mapping := m.Map([]string{"Net Revenue"})
		match, ok := mapping.Lookup(models.FieldRevenue)
		require.True(t, ok)
		assert.Equal(t, models.MatchFuzzy, match.Method)
		assert.InDelta(t, 0.5+0.5*7.0/10.0, match.Confidence, 1e-9)
	})

	mustNotMap := []struct {
		header string
		field  models.CanonicalField
	}{
		{"Gross Profit", models.FieldNetIncome},
		{"EBITDA", models.FieldOperatingIncome},
		{"Cost per Unit", models.FieldVariableCostPerUnit},
	}
	for _, tt := range mustNotMap {
		t.Run(tt.header+" stays unmapped", func(t *testing.T) {
			mapping := m.Map([]string{tt.header})
			assert.False(t, mapping.Has(tt.field))
			assert.Equal(t, []string{tt.header}, mapping.Unmapped())
		})
	}
}

func TestSchemaMapper_FuzzyIgnoresShortHeaders(t *testing.T) {
	m := newTestMapper()
	mapping := m.Map([]string{"xy"})
	assert.Equal(t, 0, mapping.Len())
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b     string
		expected float64
	}{
		{"revenue", "revenue", 1},
		{"revenu", "revenue", 0.5 + 0.5*6.0/7.0},
		{"salesamt", "sales", 0.5 + 0.5*5.0/8.0},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"grossprofit", "profit", 1 - 5.0/11.0},
		{"Gross Profit", "profit", 0.5 + 0.5*6.0/11.0},
		{"Net Revenue", "revenue", 0.5 + 0.5*7.0/10.0},
		{"", "revenue", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.expected, termSimilarity(tokenize(tt.a), tokenize(tt.b)), 1e-9)
		})
	}
}

func TestSchemaMapper_ClassifyIndustry(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		name     string
		headers  []string
		expected models.IndustryTag
	}{
		{"retail", []string{"Month", "Revenue", "COGS", "Inventory", "Store_SqFt", "Transactions"}, models.IndustryRetail},
		{"service", []string{"Revenue", "Marketing Cost", "New Customers", "Billable Hours", "Total Hours"}, models.IndustryService},
		{"manufacturing", []string{"Units Produced", "Capacity", "Defective Units", "COGS"}, models.IndustryManufacturing},
		{"finance", []string{"Portfolio Return", "Risk Free Rate", "Volatility"}, models.IndustryFinance},
		{"tie retail over manufacturing", []string{"COGS", "Units Produced"}, models.IndustryRetail},
		{"tie service over finance", []string{"Marketing Cost", "Volatility"}, models.IndustryService},
		{"tie manufacturing over finance", []string{"Capacity", "Sigma"}, models.IndustryManufacturing},
		{"no industry fields", []string{"Revenue", "Cost", "Equity"}, models.IndustryGeneric},
		{"empty", nil, models.IndustryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping := m.Map(tt.headers)
			assert.Equal(t, tt.expected, m.ClassifyIndustry(mapping))
		})
	}
}

func TestFieldMapping_IsImmutable(t *testing.T) {
	m := newTestMapper()
	mapping := m.Map([]string{"Revenue", "Notes"})

	matches := mapping.Matches()
	delete(matches, models.FieldRevenue)
	unmapped := mapping.Unmapped()
	unmapped[0] = "changed"

	assert.True(t, mapping.Has(models.FieldRevenue))
	assert.Equal(t, []string{"Notes"}, mapping.Unmapped())
}
