package checkout

// failureMessages translates provider failure codes for the customer.
var failureMessages = map[string]string{
	"PAY_PROCESS_CANCELED":              "결제를 취소하셨습니다.",
	"PAY_PROCESS_ABORTED":               "결제 진행 중 오류가 발생했습니다. 다시 시도해 주세요.",
	"REJECT_CARD_COMPANY":               "카드사에서 결제를 거절했습니다. 다른 카드를 이용해 주세요.",
	"REJECT_CARD_PAYMENT":               "한도초과 혹은 잔액부족으로 결제에 실패했습니다.",
	"INVALID_CARD_EXPIRATION":           "카드 유효기간을 확인해 주세요.",
	"INVALID_CARD_NUMBER":               "카드 번호를 확인해 주세요.",
	"INVALID_STOPPED_CARD":              "정지된 카드입니다.",
	"EXCEED_MAX_DAILY_PAYMENT_COUNT":    "하루 결제 가능 횟수를 초과했습니다.",
	"EXCEED_MAX_PAYMENT_AMOUNT":         "결제 가능 금액을 초과했습니다.",
	"NOT_ENOUGH_BALANCE":                "잔액이 부족합니다.",
	"NOT_SUPPORTED_INSTALLMENT_PLAN":    "할부가 지원되지 않는 카드입니다.",
	"FAILED_INTERNAL_SYSTEM_PROCESSING": "결제 시스템 처리 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.",
}

const (
	msgGenericFailure  = "결제에 실패했습니다. 다시 시도해 주세요."
	msgConfirmFailure  = "결제 승인 중 오류가 발생했습니다."
	msgAmountMismatch  = "결제 금액이 일치하지 않습니다."
	msgAlreadyHandled  = "이미 처리된 결제입니다."
	msgOrderNotFound   = "주문 정보를 찾을 수 없습니다."
	msgLandingCanceled = "결제 승인 요청이 취소되었습니다."
)

// FailureMessage picks the localized text for a provider code, then the
// provider's own message, then a generic one.
func FailureMessage(code, providerMessage string) string {
	if msg, ok := failureMessages[code]; ok {
		return msg
	}
	if providerMessage != "" {
		return providerMessage
	}
	return msgGenericFailure
}
