package services

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

const (
	exactConfidence   = 1.0
	synonymConfidence = 0.9
	minFuzzyLength    = 3
)

// DefaultFuzzyThreshold is the minimum similarity for a fuzzy header match.
const DefaultFuzzyThreshold = 0.75

// SchemaMapper resolves raw column headers to canonical fields and infers the
// industry of a dataset.
type SchemaMapper struct {
	synonyms   map[models.CanonicalField][]string // normalized, deduplicated
	fuzzyTerms map[models.CanonicalField][]term
	exclusions map[models.CanonicalField]map[string]struct{}
	threshold  float64
	logger     *logrus.Logger
}

// NewSchemaMapper creates a mapper over the given synonym table.
func NewSchemaMapper(table SynonymTable, threshold float64, logger *logrus.Logger) *SchemaMapper {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	if logger == nil {
		logger = logrus.New()
	}
	m := &SchemaMapper{
		synonyms:   make(map[models.CanonicalField][]string, len(table)),
		fuzzyTerms: make(map[models.CanonicalField][]term),
		exclusions: make(map[models.CanonicalField]map[string]struct{}, len(fuzzyExclusions)),
		threshold:  threshold,
		logger:     logger,
	}
	for field, list := range table {
		seen := make(map[string]struct{}, len(list))
		for _, s := range list {
			n := m.Normalize(s)
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			m.synonyms[field] = append(m.synonyms[field], n)
		}
	}
	for _, field := range models.AllCanonicalFields() {
		m.fuzzyTerms[field] = fuzzyTermsOf(field, table[field])
	}
	for field, list := range fuzzyExclusions {
		set := make(map[string]struct{}, len(list))
		for _, s := range list {
			set[m.Normalize(s)] = struct{}{}
		}
		m.exclusions[field] = set
	}
	return m
}

// Normalize case-folds a header and strips everything that is not a letter or
// a digit.
func (m *SchemaMapper) Normalize(header string) string {
	return tokenize(header).text
}

// term is a normalized string with the byte offsets at which its words start.
// Words are split at separators and at lower-to-upper case changes.
type term struct {
	text   string
	starts []int
}

func tokenize(header string) term {
	// Casers keep state, so each call gets its own.
	fold := cases.Fold()
	var (
		b         strings.Builder
		starts    []int
		inWord    bool
		prevLower bool
	)
	b.Grow(len(header))
	for _, r := range header {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			inWord, prevLower = false, false
			continue
		}
		if !inWord || (prevLower && unicode.IsUpper(r)) {
			starts = append(starts, b.Len())
		}
		inWord = true
		prevLower = unicode.IsLower(r)
		for _, f := range fold.String(string(r)) {
			if unicode.IsLetter(f) || unicode.IsDigit(f) {
				b.WriteRune(f)
			}
		}
	}
	return term{text: b.String(), starts: starts}
}

type headerCandidate struct {
	raw     string
	term    term
	claimed bool
}

// Map resolves headers to canonical fields. Resolution runs three passes
// (exact, synonym, fuzzy); within a pass fields are visited in priority order
// and each header is claimed at most once.
func (m *SchemaMapper) Map(headers []string) models.FieldMapping {
	candidates := make([]*headerCandidate, 0, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		candidates = append(candidates, &headerCandidate{raw: h, term: tokenize(h)})
	}

	fields := models.AllCanonicalFields()
	matches := make(map[models.CanonicalField]models.FieldMatch)

	claim := func(field models.CanonicalField, c *headerCandidate, method models.MatchMethod, confidence float64) {
		c.claimed = true
		matches[field] = models.FieldMatch{Column: c.raw, Method: method, Confidence: confidence}
	}

	// Pass 1: exact normalized equality with the field name.
	for _, field := range fields {
		name := m.Normalize(string(field))
		for _, c := range candidates {
			if !c.claimed && c.term.text != "" && c.term.text == name {
				claim(field, c, models.MatchExact, exactConfidence)
				break
			}
		}
	}

	// Pass 2: synonym table membership.
	for _, field := range fields {
		if _, done := matches[field]; done {
			continue
		}
		for _, c := range candidates {
			if !c.claimed && m.isSynonym(field, c.term.text) {
				claim(field, c, models.MatchSynonym, synonymConfidence)
				break
			}
		}
	}

	// Pass 3: fuzzy similarity above the threshold.
	for _, field := range fields {
		if _, done := matches[field]; done {
			continue
		}
		terms := m.fuzzyTerms[field]
		var best *headerCandidate
		bestScore := 0.0
		for _, c := range candidates {
			if c.claimed || len([]rune(c.term.text)) < minFuzzyLength || m.isExcluded(field, c.term.text) {
				continue
			}
			score := 0.0
			for _, t := range terms {
				if s := termSimilarity(c.term, t); s > score {
					score = s
				}
			}
			if score >= m.threshold && score > bestScore {
				best, bestScore = c, score
			}
		}
		if best != nil {
			claim(field, best, models.MatchFuzzy, bestScore)
		}
	}

	var unmapped []string
	for _, c := range candidates {
		if !c.claimed {
			unmapped = append(unmapped, c.raw)
		}
	}

	m.logger.WithFields(logrus.Fields{
		"headers":  len(candidates),
		"mapped":   len(matches),
		"unmapped": len(unmapped),
	}).Debug("Resolved dataset headers")

	return models.NewFieldMapping(matches, unmapped)
}

func (m *SchemaMapper) isSynonym(field models.CanonicalField, normalized string) bool {
	if normalized == "" {
		return false
	}
	for _, s := range m.synonyms[field] {
		if s == normalized {
			return true
		}
	}
	return false
}

func (m *SchemaMapper) isExcluded(field models.CanonicalField, normalized string) bool {
	_, ok := m.exclusions[field][normalized]
	return ok
}

func fuzzyTermsOf(field models.CanonicalField, synonyms []string) []term {
	terms := make([]term, 0, len(synonyms)+1)
	for _, s := range append([]string{string(field)}, synonyms...) {
		if t := tokenize(s); len([]rune(t.text)) >= minFuzzyLength {
			terms = append(terms, t)
		}
	}
	return terms
}

// termSimilarity scores two terms in [0,1]. When the shorter text occurs in
// the longer one starting at a word start it scores 0.5 plus half the length
// ratio; otherwise the normalized edit distance is used.
func termSimilarity(a, b term) float64 {
	if a.text == "" || b.text == "" {
		return 0
	}
	if a.text == b.text {
		return 1
	}
	short, long := a, b
	if len([]rune(short.text)) > len([]rune(long.text)) {
		short, long = long, short
	}
	ls, ll := len([]rune(short.text)), len([]rune(long.text))
	for _, at := range long.starts {
		if strings.HasPrefix(long.text[at:], short.text) {
			return 0.5 + 0.5*float64(ls)/float64(ll)
		}
	}
	dist := levenshtein.ComputeDistance(a.text, b.text)
	return 1 - float64(dist)/float64(ll)
}

// ClassifyIndustry scores every industry by the number of its required fields
// present in the mapping. The highest score wins; ties follow the fixed
// industry priority. No match at all yields Generic.
func (m *SchemaMapper) ClassifyIndustry(mapping models.FieldMapping) models.IndustryTag {
	best := models.IndustryGeneric
	bestScore := 0
	for _, industry := range models.IndustryPriority {
		score := 0
		for _, f := range industryRequiredFields[industry] {
			if mapping.Has(f) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = industry, score
		}
	}

	m.logger.WithFields(logrus.Fields{
		"industry": best,
		"score":    bestScore,
	}).Debug("Classified dataset industry")

	return best
}
