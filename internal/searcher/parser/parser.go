// Package parser turns a raw query line into the conjunctive plan the
// executor evaluates. Every whitespace-separated token is a required term;
// no operators, case folding or stemming are applied, matching indexing.
package parser

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/tokenizer"
)

type QueryPlan struct {
	// Terms holds the distinct query terms in first-occurrence order.
	Terms    []string
	RawQuery string
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	for _, term := range tokenizer.Terms(query) {
		if slices.Contains(plan.Terms, term) {
			continue
		}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}

func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Normalized is a canonical form of the plan: AND is commutative so two
// queries naming the same terms in any order share it.
func (p *QueryPlan) Normalized() string {
	terms := slices.Clone(p.Terms)
	slices.Sort(terms)
	return strings.Join(terms, " ")
}
