// Package rewrite post-processes synthesized queries with an ordered chain
// of deterministic text rules. Every rule is idempotent, and so is the
// chain as a whole: applying it to its own output is a no-op.
package rewrite

import "strings"

// Rule is a single pure text rewrite.
type Rule interface {
	Name() string
	Rewrite(query string) string
}

// Chain applies its rules in order, once each.
type Chain struct {
	rules []Rule
}

func NewChain(rules ...Rule) Chain {
	return Chain{rules: rules}
}

// Apply runs the chain over the query.
func (c Chain) Apply(query string) string {
	for _, rule := range c.rules {
		query = rule.Rewrite(query)
	}
	return query
}

// Applied reports which rules change the query, in chain order.
func (c Chain) Applied(query string) []string {
	var applied []string
	for _, rule := range c.rules {
		rewritten := rule.Rewrite(query)
		if rewritten != query {
			applied = append(applied, rule.Name())
		}
		query = rewritten
	}
	return applied
}

// Names lists the chain's rules in order.
func (c Chain) Names() []string {
	names := make([]string, len(c.rules))
	for i, rule := range c.rules {
		names[i] = rule.Name()
	}
	return names
}

func (c Chain) String() string {
	return strings.Join(c.Names(), " > ")
}
