package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pushrelay/pushrelay/internal/filter"
)

func TestShouldForward(t *testing.T) {
	tests := []struct {
		name  string
		app   string
		allow []string
		deny  []string
		want  bool
	}{
		{"no filters forwards everything", "Mail", nil, nil, true},
		{"allow list member", "Mail", []string{"Mail"}, nil, true},
		{"allow list non-member", "Chat", []string{"Mail"}, nil, false},
		{"allow list wins over deny list", "Mail", []string{"Mail"}, []string{"Mail"}, true},
		{"non-member blocked even if absent from deny", "Chat", []string{"Mail"}, []string{"Spam"}, false},
		{"deny list member", "Spam", nil, []string{"Spam"}, false},
		{"deny list non-member", "Mail", nil, []string{"Spam"}, true},
		{"matching is case-sensitive", "mail", []string{"Mail"}, nil, false},
		{"empty app name with deny list", "", nil, []string{"Spam"}, true},
		{"unknown app against allow list", "Unknown App", []string{"Mail"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filter.ShouldForward(tt.app, tt.allow, tt.deny)
			assert.Equal(t, tt.want, got)
		})
	}
}
