package conversation

import (
	"regexp"
	"strings"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Affirmation vocabulary across the languages the bot serves. Matching is
// exact on the normalized token, not substring, so "nope" never reads as
// "o" (French oui shorthand).
var yesWords = map[string]bool{
	"yes": true, "y": true, "ok": true, "okay": true,
	"oui": true, "o": true,
	"evet": true, "tamam": true,
	"نعم": true, "اي": true, "أجل": true,
	"1": true,
}

var noWords = map[string]bool{
	"no": true, "n": true,
	"non": true,
	"hayir": true, "hayır": true,
	"لا": true,
	"0": true, "2": true,
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func isYes(text string) bool {
	return yesWords[normalize(text)]
}

func isNo(text string) bool {
	return noWords[normalize(text)]
}

var freeAmountRe = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// parseFreeAmount reads a typed amount, accepting the FR decimal comma.
func parseFreeAmount(text string) (decimal.Decimal, bool) {
	t := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if !freeAmountRe.MatchString(t) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Round(2), true
}

func parseServiceType(text string) models.ServiceType {
	t := normalize(text)
	switch {
	case t == "1" || strings.Contains(t, "credit") || strings.Contains(t, "crédit") || strings.Contains(t, "airtime"):
		return models.ServiceAirtime
	case t == "2" || strings.Contains(t, "internet") || strings.Contains(t, "data"):
		return models.ServiceData
	case t == "3" || strings.Contains(t, "minute") || strings.Contains(t, "voice") || strings.Contains(t, "appel"):
		return models.ServiceVoice
	}
	return ""
}
