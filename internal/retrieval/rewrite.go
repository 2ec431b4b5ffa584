package retrieval

import "strings"

// ProfileName is prefixed to contact questions so the search lands on the
// chunks that carry the owner's contact details.
const ProfileName = "Tauqeer Ali Khan"

// RewriteRule transforms a query before the similarity search when Match
// reports true.
type RewriteRule struct {
	Name  string
	Match func(query string) bool
	Apply func(query string) string
}

// ContactRule prefixes name to any query mentioning "contact".
func ContactRule(name string) RewriteRule {
	return RewriteRule{
		Name: "contact",
		Match: func(q string) bool {
			return strings.Contains(strings.ToLower(q), "contact")
		},
		Apply: func(q string) string {
			return name + " " + q
		},
	}
}

func DefaultRules() []RewriteRule {
	return []RewriteRule{ContactRule(ProfileName)}
}

// Rewrite runs every matching rule in order and returns the final query
// along with the names of the rules that fired.
func Rewrite(rules []RewriteRule, query string) (string, []string) {
	var applied []string
	for _, r := range rules {
		if r.Match(query) {
			query = r.Apply(query)
			applied = append(applied, r.Name)
		}
	}
	return query, applied
}
