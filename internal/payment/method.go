package payment

type Method string

const (
	MethodCard           Method = "CARD"
	MethodTransfer       Method = "TRANSFER"
	MethodVirtualAccount Method = "VIRTUAL_ACCOUNT"
	MethodMobile         Method = "MOBILE"
	MethodKakaoPay       Method = "KAKAOPAY"
	MethodNaverPay       Method = "NAVERPAY"
	MethodTossPay        Method = "TOSSPAY"
)

// The provider reports methods as localized labels; English names are
// accepted too.
var methodLabels = map[string]Method{
	"카드":              MethodCard,
	"CARD":            MethodCard,
	"계좌이체":            MethodTransfer,
	"TRANSFER":        MethodTransfer,
	"가상계좌":            MethodVirtualAccount,
	"VIRTUAL_ACCOUNT": MethodVirtualAccount,
	"휴대폰":             MethodMobile,
	"MOBILE_PHONE":    MethodMobile,
}

var easyPayProviders = map[string]Method{
	"카카오페이":    MethodKakaoPay,
	"KAKAOPAY": MethodKakaoPay,
	"네이버페이":    MethodNaverPay,
	"NAVERPAY": MethodNaverPay,
	"토스페이":     MethodTossPay,
	"TOSSPAY":  MethodTossPay,
}

// MethodFromProvider maps the provider's method label, plus the easy-pay
// provider for 간편결제, to a Method. Unknown values fall back to card and
// report false.
func MethodFromProvider(label, easyPayProvider string) (Method, bool) {
	if label == "간편결제" || label == "EASY_PAY" {
		if m, ok := easyPayProviders[easyPayProvider]; ok {
			return m, true
		}
		return MethodCard, false
	}
	if m, ok := methodLabels[label]; ok {
		return m, true
	}
	return MethodCard, false
}
