package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "abc", "abc"},
		{"acute", "á", "a"},
		{"mixed", "Ádám Péter", "Adam Peter"},
		{"decomposed input", "áb", "ab"},
		{"eszett", "Straße", "Strasse"},
		{"stroke", "Łódź", "Lodz"},
		{"empty", "", ""},
		{"untouched symbols", "P1 & P2 <3", "P1 & P2 <3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	once := NormalizeText("Çağrı Øster")
	assert.Equal(t, once, NormalizeText(once))
}
