package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Acme Inc", "acme inc"},
		{"trims", "  Acme Inc  ", "acme inc"},
		{"collapses interior whitespace", "Acme\t  Inc", "acme inc"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"case folds non-ascii", "Straße GmbH", "strasse gmbh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeName_EqualForCaseVariants(t *testing.T) {
	assert.Equal(t, NormalizeName("Acme Inc"), NormalizeName("acme inc"))
	assert.Equal(t, NormalizeName("ACME INC"), NormalizeName(" acme  inc "))
}
