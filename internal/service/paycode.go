package service

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"kiosk-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	kakaoPayBaseURL = "https://qr.kakaopay.com/"
	// сдвиг суммы в адресном пространстве QR kakaopay
	kakaoAmountShift = 19

	// пикселей на модуль QR
	qrBoxSize = 8
)

// Payee получатель платежа из фиксированного списка менеджеров.
type Payee struct {
	KakaoUID      string
	TossBank      string
	TossAccountNo string
}

var payees = map[string]Payee{
	"KIM":   {KakaoUID: "FY0PfA6Rh", TossBank: "토스뱅크", TossAccountNo: "100020873228"},
	"SOHN":  {KakaoUID: "FNutg4ymq", TossBank: "토스뱅크", TossAccountNo: "100175594154"},
	"AHN":   {KakaoUID: "FE4OcxwKl", TossBank: "국민은행", TossAccountNo: "83100200019123"},
	"LEE":   {KakaoUID: "FauZdCtoD", TossBank: "국민은행", TossAccountNo: "663210408036"},
	"HWANG": {KakaoUID: "Ej7jq9DMe", TossBank: "국민은행", TossAccountNo: "34780104124233"},
}

// Managers возвращает отсортированный список допустимых менеджеров.
func Managers() []string {
	out := make([]string, 0, len(payees))
	for name := range payees {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func lookupPayee(manager string) (Payee, error) {
	p, ok := payees[manager]
	if !ok {
		return Payee{}, fmt.Errorf("%w: %q, must be one of %s", ErrInvalidPayee, manager, strings.Join(Managers(), ", "))
	}
	return p, nil
}

func checkMethod(method models.PaymentMethod) error {
	switch method {
	case models.PaymentKakaoPay, models.PaymentTossPay:
		return nil
	default:
		return fmt.Errorf("%w: %q, must be 'kakaopay' or 'tosspay'", ErrUnsupportedMethod, method)
	}
}

// PaymentCode: диплинк и его QR-изображение.
type PaymentCode struct {
	URL string
	PNG []byte
}

// PaymentCodeGenerator строит диплинки платёжных приложений. Состояния нет.
type PaymentCodeGenerator struct{}

func NewPaymentCodeGenerator() *PaymentCodeGenerator { return &PaymentCodeGenerator{} }

// DeepLink детерминирован: одинаковые входы дают одинаковый URL.
func (g *PaymentCodeGenerator) DeepLink(method models.PaymentMethod, manager string, amount decimal.Decimal) (string, error) {
	if err := checkMethod(method); err != nil {
		return "", err
	}
	payee, err := lookupPayee(manager)
	if err != nil {
		return "", err
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("%w: amount must be >= 0", ErrInvalidTransactionData)
	}

	// банковское округление: 2.5 -> 2, 3.5 -> 4
	won := amount.RoundBank(0).IntPart()

	switch method {
	case models.PaymentKakaoPay:
		return kakaoPayBaseURL + payee.KakaoUID + fmt.Sprintf("%X", won<<kakaoAmountShift), nil
	default:
		q := "amount=" + fmt.Sprint(won) +
			"&bank=" + url.QueryEscape(payee.TossBank) +
			"&accountNo=" + payee.TossAccountNo +
			"&origin=qr"
		return "supertoss://send?" + q, nil
	}
}

// Generate строит диплинк и кодирует его в PNG с уровнем коррекции L.
func (g *PaymentCodeGenerator) Generate(method models.PaymentMethod, manager string, amount decimal.Decimal) (*PaymentCode, error) {
	link, err := g.DeepLink(method, manager, amount)
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.New(link, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	png, err := qr.PNG(len(qr.Bitmap()) * qrBoxSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return &PaymentCode{URL: link, PNG: png}, nil
}
