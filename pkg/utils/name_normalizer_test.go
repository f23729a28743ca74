package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"ESKİŞEHİR", "eskisehir"},
		{"Eskişehir", "eskisehir"},
		{"İstanbul", "istanbul"},
		{"ISTANBUL", "istanbul"},
		{"ÇANKAYA", "cankaya"},
		{"Gaziosmanpaşa", "gaziosmanpasa"},
		{"  Üsküdar   Merkez ", "uskudar merkez"},
		{"XF+VX Eskişehir, Turkey", "xf+vx eskisehir, turkey"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, FoldName(tc.input))
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "02222311122", DigitsOnly("(0222) 231 11 22"))
	assert.Equal(t, "", DigitsOnly("N/A"))
}

func TestTurkishTitle(t *testing.T) {
	assert.Equal(t, "Aydın", TurkishTitle("AYDIN"))
	assert.Equal(t, "İlke", TurkishTitle("İLKE"))
}
