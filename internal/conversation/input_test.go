package conversation

import (
	"testing"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestYesNoVocabulary(t *testing.T) {
	for _, text := range []string{"oui", " OUI ", "o", "yes", "ok", "evet", "نعم", "1"} {
		assert.True(t, isYes(text), "%q should read as yes", text)
	}
	for _, text := range []string{"non", "no", "hayır", "لا", "2"} {
		assert.True(t, isNo(text), "%q should read as no", text)
	}
	// Token match, never substring.
	assert.False(t, isYes("nope"))
	assert.False(t, isYes("okay then maybe"))
	assert.False(t, isNo("bonjour"))
}

func TestParseFreeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10", "10", true},
		{"9.99", "9.99", true},
		{"9,99", "9.99", true},
		{" 5.5 ", "5.5", true},
		{"banana", "", false},
		{"10 euros", "", false},
		{"-5", "", false},
		{"9.999", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseFreeAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.String(), "input %q", tt.in)
		}
	}
}

func TestParseServiceType(t *testing.T) {
	assert.Equal(t, models.ServiceAirtime, parseServiceType("1"))
	assert.Equal(t, models.ServiceAirtime, parseServiceType("Crédit"))
	assert.Equal(t, models.ServiceData, parseServiceType("2"))
	assert.Equal(t, models.ServiceData, parseServiceType("internet"))
	assert.Equal(t, models.ServiceVoice, parseServiceType("3"))
	assert.Equal(t, models.ServiceVoice, parseServiceType("minutes d'appel"))
	assert.Equal(t, models.ServiceType(""), parseServiceType("something else"))
}
