// Package reply renders outbound conversation text per language. Wording
// lives here and nowhere else; callers pass data, never strings.
package reply

import (
	"fmt"
	"strings"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"

	"github.com/shopspring/decimal"
)

type Formatter struct {
	DefaultLang string
}

type CountryOption struct {
	ISOCode string
	Name    string
}

func (f Formatter) lang(language string) string {
	switch language {
	case "fr", "tr", "ar", "en":
		return language
	}
	if f.DefaultLang != "" {
		return f.DefaultLang
	}
	return "fr"
}

func (f Formatter) AskCountry(language string, top []CountryOption) string {
	var b strings.Builder
	for i, c := range top {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, c.Name, c.ISOCode)
	}
	list := strings.TrimRight(b.String(), "\n")

	switch f.lang(language) {
	case "fr":
		return "🌍 Choisissez le pays de recharge :\n\n" + list + "\n\nOu écrivez le nom du pays."
	case "tr":
		return "🌍 Ülkeyi seçin:\n\n" + list + "\n\nVeya ülke adını yazın."
	case "ar":
		return "🌍 اختر الدولة:\n\n" + list + "\n\nأو اكتب اسم الدولة."
	default:
		return "🌍 Choose the recharge country:\n\n" + list + "\n\nOr type the country name."
	}
}

func (f Formatter) CountryUnavailable(language string) string {
	switch f.lang(language) {
	case "fr":
		return "🙏 Merci pour votre visite !\n\nLes services pour ce pays seront disponibles très prochainement."
	case "tr":
		return "🙏 Ziyaretiniz için teşekkürler!\n\nBu ülke için hizmetler çok yakında."
	case "ar":
		return "🙏 شكراً لزيارتكم!\n\nالخدمات لهذه الدولة ستتوفر قريباً."
	default:
		return "🙏 Thank you for visiting!\n\nServices for this country are coming very soon."
	}
}

func (f Formatter) AskPhone(language string) string {
	switch f.lang(language) {
	case "fr":
		return "📱 Entrez le numéro à recharger\nEx: +33612345678"
	case "tr":
		return "📱 Yüklenecek numarayı girin\nÖrnek: +905xxxxxxxx"
	case "ar":
		return "📱 أدخل رقم الهاتف\nمثال: +905xxxxxxxx"
	default:
		return "📱 Enter the phone number\nExample: +33612345678"
	}
}

func (f Formatter) InvalidPhone(language string) string {
	switch f.lang(language) {
	case "fr":
		return "❌ Numéro invalide. Réessayez."
	case "tr":
		return "❌ Geçersiz numara. Tekrar deneyin."
	case "ar":
		return "❌ رقم غير صالح. حاول مرة أخرى."
	default:
		return "❌ Invalid phone number. Please try again."
	}
}

func (f Formatter) ConfirmOperator(language, operatorName, phoneMasked string) string {
	switch f.lang(language) {
	case "fr":
		return fmt.Sprintf("📡 Opérateur détecté : %s\nNuméro : %s\n\nConfirmez-vous ?\nOUI / NON", operatorName, phoneMasked)
	case "tr":
		return fmt.Sprintf("📡 Operatör: %s\nNumara: %s\n\nOnaylıyor musunuz?\nEVET / HAYIR", operatorName, phoneMasked)
	case "ar":
		return fmt.Sprintf("📡 الشركة: %s\nالرقم: %s\n\nهل تؤكد؟\nنعم / لا", operatorName, phoneMasked)
	default:
		return fmt.Sprintf("📡 Operator: %s\nNumber: %s\n\nConfirm?\nYES / NO", operatorName, phoneMasked)
	}
}

func (f Formatter) AskServiceType(language string) string {
	switch f.lang(language) {
	case "fr":
		return "📱 Que souhaitez-vous recharger ?\n\n1. Crédit mobile\n2. Internet\n3. Minutes"
	case "tr":
		return "📱 Ne yüklemek istiyorsunuz?\n\n1. Mobil bakiye\n2. İnternet\n3. Dakika"
	case "ar":
		return "📱 ماذا تريد شحنه؟\n\n1. رصيد\n2. إنترنت\n3. دقائق"
	default:
		return "📱 What would you like to recharge?\n\n1. Mobile credit\n2. Internet\n3. Minutes"
	}
}

func (f Formatter) AskProduct(language string, products []models.Product) string {
	var b strings.Builder
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s - %s %s\n", i+1, p.Name, p.Amount.StringFixed(2), p.Currency)
	}
	list := strings.TrimRight(b.String(), "\n")

	switch f.lang(language) {
	case "fr":
		return "💳 Choisissez un montant / forfait :\n\n" + list
	case "tr":
		return "💳 Paket seçin:\n\n" + list
	case "ar":
		return "💳 اختر الباقة:\n\n" + list
	default:
		return "💳 Choose a package:\n\n" + list
	}
}

type OrderSummary struct {
	CountryLabel string
	PhoneMasked  string
	OperatorName string
	ServiceLabel string
	ProductLabel string
	Price        decimal.Decimal
	Currency     string
	Fee          decimal.Decimal
	Total        decimal.Decimal
	Reference    string
}

func (f Formatter) Summary(language string, s OrderSummary) string {
	switch f.lang(language) {
	case "fr":
		return fmt.Sprintf(`📋 Résumé commande

Pays : %s
Numéro : %s
Opérateur : %s
Service : %s
Forfait : %s
Prix : %s %s
Frais service : %s %s
Total à payer : %s %s
Référence : %s

Confirmez-vous ?

OUI / NON`,
			s.CountryLabel, s.PhoneMasked, s.OperatorName, s.ServiceLabel, s.ProductLabel,
			s.Price.StringFixed(2), s.Currency, s.Fee.StringFixed(2), s.Currency,
			s.Total.StringFixed(2), s.Currency, s.Reference)
	case "tr":
		return fmt.Sprintf(`📋 Sipariş Özeti

Ülke : %s
Numara : %s
Operatör : %s
Servis : %s
Paket : %s
Fiyat : %s %s
Hizmet ücreti : %s %s
Toplam : %s %s
Referans : %s

Onaylıyor musunuz?

EVET / HAYIR`,
			s.CountryLabel, s.PhoneMasked, s.OperatorName, s.ServiceLabel, s.ProductLabel,
			s.Price.StringFixed(2), s.Currency, s.Fee.StringFixed(2), s.Currency,
			s.Total.StringFixed(2), s.Currency, s.Reference)
	case "ar":
		return fmt.Sprintf(`📋 ملخص الطلب

الدولة : %s
الرقم : %s
الشركة : %s
الخدمة : %s
الباقة : %s
السعر : %s %s
رسوم الخدمة : %s %s
الإجمالي : %s %s
المرجع : %s

هل تؤكد؟

نعم / لا`,
			s.CountryLabel, s.PhoneMasked, s.OperatorName, s.ServiceLabel, s.ProductLabel,
			s.Price.StringFixed(2), s.Currency, s.Fee.StringFixed(2), s.Currency,
			s.Total.StringFixed(2), s.Currency, s.Reference)
	default:
		return fmt.Sprintf(`📋 Order summary

Country: %s
Number: %s
Operator: %s
Service: %s
Package: %s
Price: %s %s
Service fee: %s %s
Total due: %s %s
Reference: %s

Confirm?

YES / NO`,
			s.CountryLabel, s.PhoneMasked, s.OperatorName, s.ServiceLabel, s.ProductLabel,
			s.Price.StringFixed(2), s.Currency, s.Fee.StringFixed(2), s.Currency,
			s.Total.StringFixed(2), s.Currency, s.Reference)
	}
}

func (f Formatter) PaymentLink(language, payURL string) string {
	switch f.lang(language) {
	case "fr":
		return "💳 Finalisez votre paiement ici :\n" + payURL
	case "tr":
		return "💳 Ödemenizi buradan tamamlayın:\n" + payURL
	case "ar":
		return "💳 أكمل الدفع هنا:\n" + payURL
	default:
		return "💳 Complete your payment here:\n" + payURL
	}
}

func (f Formatter) PaymentPending(language, payURL string) string {
	var base string
	switch f.lang(language) {
	case "fr":
		base = "⏳ Paiement en attente. Votre recharge partira dès confirmation."
	case "tr":
		base = "⏳ Ödeme bekleniyor. Onaylanınca yükleme yapılacak."
	case "ar":
		base = "⏳ الدفع قيد الانتظار. سيتم الشحن فور التأكيد."
	default:
		base = "⏳ Payment pending. Your top-up will run as soon as it is confirmed."
	}
	if payURL != "" {
		return base + "\n" + payURL
	}
	return base
}

func (f Formatter) TopupSuccess(language, reference string) string {
	switch f.lang(language) {
	case "fr":
		return "✅ Recharge effectuée avec succès !\nRéférence : " + reference
	case "tr":
		return "✅ Yükleme başarıyla tamamlandı!\nReferans: " + reference
	case "ar":
		return "✅ تم الشحن بنجاح!\nالمرجع: " + reference
	default:
		return "✅ Top-up completed successfully!\nReference: " + reference
	}
}

func (f Formatter) FallbackReset(language string) string {
	switch f.lang(language) {
	case "fr":
		return "🔄 Je n'ai pas compris. On reprend depuis le début.\n\n🌍 Quel pays souhaitez-vous recharger ?"
	case "tr":
		return "🔄 Anlayamadım. Baştan başlayalım.\n\n🌍 Hangi ülkeye yükleme yapmak istiyorsunuz?"
	case "ar":
		return "🔄 لم أفهم. لنبدأ من جديد.\n\n🌍 أي دولة تريد الشحن لها؟"
	default:
		return "🔄 I didn't understand. Let's start over.\n\n🌍 Which country would you like to recharge?"
	}
}

// ServiceLabel maps the internal service type to user-facing wording.
func (f Formatter) ServiceLabel(language string, t models.ServiceType) string {
	labels := map[string][3]string{
		"fr": {"Crédit mobile", "Internet", "Minutes"},
		"tr": {"Mobil bakiye", "İnternet", "Dakika"},
		"ar": {"رصيد", "إنترنت", "دقائق"},
		"en": {"Mobile credit", "Internet", "Minutes"},
	}
	set := labels[f.lang(language)]
	switch t {
	case models.ServiceAirtime:
		return set[0]
	case models.ServiceData:
		return set[1]
	case models.ServiceVoice:
		return set[2]
	}
	return string(t)
}
