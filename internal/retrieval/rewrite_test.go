package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactRule(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"what's your contact?", "Tauqeer Ali Khan what's your contact?"},
		{"How can I CONTACT him", "Tauqeer Ali Khan How can I CONTACT him"},
		{"Contacts list", "Tauqeer Ali Khan Contacts list"},
		{"what is a chunk?", "what is a chunk?"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, _ := Rewrite(DefaultRules(), tt.query)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewrite_RulesRunInOrder(t *testing.T) {
	rules := []RewriteRule{
		{Name: "a", Match: func(string) bool { return true }, Apply: func(q string) string { return q + "a" }},
		{Name: "b", Match: func(q string) bool { return len(q) > 1 }, Apply: func(q string) string { return q + "b" }},
		{Name: "never", Match: func(string) bool { return false }, Apply: func(q string) string { return "x" }},
	}

	got, applied := Rewrite(rules, "q")
	assert.Equal(t, "qab", got)
	assert.Equal(t, []string{"a", "b"}, applied)
}
