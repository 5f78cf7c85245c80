package rewrite

import (
	"regexp"
	"strings"
)

// DefaultChain is the rule order used by the pipeline: string-match
// normalization, property canonicalization, bare-node return expansion,
// unsupported-call stripping, then whitespace cleanup.
func DefaultChain() Chain {
	return NewChain(
		NewLowercaseContains(nil),
		NewCanonicalProperties(nil),
		NewExpandReturns(nil),
		NewStripUnsupportedCalls("apoc."),
		NormalizeWhitespace{},
	)
}

// LowercaseContains rewrites exact-equality comparisons on name-like
// properties into lowercase substring form, so generated filters survive
// capitalization and partial-name questions:
//
//	WHERE i.name = 'Cambridge'  →  WHERE LOWER(i.name) CONTAINS 'cambridge'
type LowercaseContains struct {
	properties map[string]bool
	pattern    *regexp.Regexp
}

var defaultNameProperties = []string{"name", "knownName", "fullName"}

func NewLowercaseContains(properties []string) LowercaseContains {
	if len(properties) == 0 {
		properties = defaultNameProperties
	}
	lookup := make(map[string]bool, len(properties))
	for _, property := range properties {
		lookup[strings.ToLower(property)] = true
	}
	return LowercaseContains{
		properties: lookup,
		pattern:    regexp.MustCompile(`(?i)WHERE\s+(\w+)\.(\w+)\s*=\s*['"]([^'"]+)['"]`),
	}
}

func (r LowercaseContains) Name() string { return "lowercase_contains" }

func (r LowercaseContains) Rewrite(query string) string {
	return r.pattern.ReplaceAllStringFunc(query, func(match string) string {
		groups := r.pattern.FindStringSubmatch(match)
		variable, property, value := groups[1], groups[2], groups[3]
		if !r.properties[strings.ToLower(property)] {
			return match
		}
		return "WHERE LOWER(" + variable + "." + property + ") CONTAINS '" + strings.ToLower(value) + "'"
	})
}

// CanonicalProperties maps commonly mis-generated property names onto the
// schema's real ones. Replacements apply in a fixed order.
type CanonicalProperties struct {
	replacements []propertyReplacement
}

type propertyReplacement struct {
	name     string
	pattern  *regexp.Regexp
	replaced string
}

// PropertyFix declares one rename, matched as `.old` with a word boundary.
type PropertyFix struct {
	Old string
	New string
}

var defaultPropertyFixes = []PropertyFix{
	{Old: "amount", New: "prizeAmount"},
	{Old: "year", New: "awardYear"},
}

func NewCanonicalProperties(fixes []PropertyFix) CanonicalProperties {
	if len(fixes) == 0 {
		fixes = defaultPropertyFixes
	}
	replacements := make([]propertyReplacement, 0, len(fixes))
	for _, fix := range fixes {
		replacements = append(replacements, propertyReplacement{
			name:     fix.Old,
			pattern:  regexp.MustCompile(`\.` + regexp.QuoteMeta(fix.Old) + `\b`),
			replaced: "." + fix.New,
		})
	}
	return CanonicalProperties{replacements: replacements}
}

func (r CanonicalProperties) Name() string { return "canonical_properties" }

func (r CanonicalProperties) Rewrite(query string) string {
	for _, replacement := range r.replacements {
		query = replacement.pattern.ReplaceAllString(query, replacement.replaced)
	}
	return query
}

// ExpandReturns replaces a trailing RETURN of bare node variables with an
// explicit list of their salient properties:
//
//	RETURN s  →  RETURN s.knownName
//
// Expansion is variable-name driven; unknown variables fall back to the
// default property. Returns that already name properties are untouched.
type ExpandReturns struct {
	expansions      map[string][]string
	defaultProperty string
	pattern         *regexp.Regexp
}

// Expansions configures ExpandReturns per variable name.
type Expansions struct {
	ByVariable      map[string][]string
	DefaultProperty string
}

func defaultExpansions() Expansions {
	return Expansions{
		ByVariable: map[string][]string{
			"s":       {"knownName"},
			"s1":      {"knownName"},
			"s2":      {"knownName"},
			"scholar": {"knownName"},
			"p":       {"category", "awardYear"},
			"p1":      {"category", "awardYear"},
			"prize":   {"category", "awardYear"},
		},
		DefaultProperty: "name",
	}
}

func NewExpandReturns(cfg *Expansions) ExpandReturns {
	expansions := defaultExpansions()
	if cfg != nil {
		expansions = *cfg
	}
	if expansions.DefaultProperty == "" {
		expansions.DefaultProperty = "name"
	}
	return ExpandReturns{
		expansions:      expansions.ByVariable,
		defaultProperty: expansions.DefaultProperty,
		pattern:         regexp.MustCompile(`(?i)\bRETURN\s+([a-z]\w*(?:\s*,\s*[a-z]\w*)*)\s*$`),
	}
}

func (r ExpandReturns) Name() string { return "expand_returns" }

func (r ExpandReturns) Rewrite(query string) string {
	match := r.pattern.FindStringSubmatchIndex(query)
	if match == nil {
		return query
	}
	variableList := query[match[2]:match[3]]

	var expanded []string
	for _, variable := range strings.Split(variableList, ",") {
		variable = strings.TrimSpace(variable)
		if variable == "" {
			continue
		}
		// Cypher keywords after RETURN (count, DISTINCT aggregates and the
		// like) are not node variables; leave those returns alone.
		if isReturnKeyword(variable) {
			return query
		}
		properties, known := r.expansions[strings.ToLower(variable)]
		if !known {
			properties = []string{r.defaultProperty}
		}
		for _, property := range properties {
			expanded = append(expanded, variable+"."+property)
		}
	}
	if len(expanded) == 0 {
		return query
	}
	return query[:match[0]] + "RETURN " + strings.Join(expanded, ", ")
}

var returnKeywords = map[string]bool{
	"count": true, "distinct": true, "sum": true, "avg": true,
	"min": true, "max": true, "collect": true,
}

func isReturnKeyword(token string) bool {
	return returnKeywords[strings.ToLower(token)]
}

// StripUnsupportedCalls removes function invocations the target store does
// not support (APOC procedures in the Kuzu deployment).
type StripUnsupportedCalls struct {
	prefix  string
	pattern *regexp.Regexp
}

func NewStripUnsupportedCalls(prefix string) StripUnsupportedCalls {
	return StripUnsupportedCalls{
		prefix:  prefix,
		pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `\w+(?:\.\w+)*\([^)]*\)`),
	}
}

func (r StripUnsupportedCalls) Name() string { return "strip_unsupported_calls" }

func (r StripUnsupportedCalls) Rewrite(query string) string {
	if !strings.Contains(strings.ToLower(query), strings.ToLower(r.prefix)) {
		return query
	}
	return r.pattern.ReplaceAllString(query, "")
}

// NormalizeWhitespace collapses newlines and runs of spaces into single
// spaces and trims the ends. Runs last so earlier rules see the original
// spacing and later comparisons are byte-stable.
type NormalizeWhitespace struct{}

func (NormalizeWhitespace) Name() string { return "normalize_whitespace" }

func (NormalizeWhitespace) Rewrite(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
