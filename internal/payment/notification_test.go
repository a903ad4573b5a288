package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const testServerKey = "SB-Mid-server-test"

func signed(n Notification) Notification {
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	return n
}

func TestSignatureIsSHA512Hex(t *testing.T) {
	sig := Signature("ORD-1", "200", "10000.00", "key")
	require.Len(t, sig, 128)
	require.Equal(t, sig, Signature("ORD-1", "200", "10000.00", "key"))
	require.NotEqual(t, sig, Signature("ORD-1", "201", "10000.00", "key"))
}

func TestVerify(t *testing.T) {
	v := SignatureVerifier{ServerKey: testServerKey}
	n := signed(Notification{OrderID: "ORD-1", StatusCode: "200", GrossAmount: "258650.00", TransactionStatus: "settlement"})
	require.NoError(t, v.Verify(n))

	tampered := n
	tampered.GrossAmount = "1.00"
	err := v.Verify(tampered)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.Equal(t, apperr.KindGateway, apperr.KindOf(err))

	require.Error(t, SignatureVerifier{}.Verify(n))
}

func TestDecide(t *testing.T) {
	cases := []struct {
		status, fraud string
		want          orders.PaymentAction
		ok            bool
	}{
		{"capture", "accept", orders.ActionConfirm, true},
		{"capture", "", orders.ActionConfirm, true},
		{"capture", "challenge", orders.ActionReview, true},
		{"capture", "deny", orders.ActionVoid, true},
		{"settlement", "", orders.ActionConfirm, true},
		{"Settlement", "accept", orders.ActionConfirm, true},
		{"pending", "", orders.ActionAwait, true},
		{"deny", "", orders.ActionVoid, true},
		{"expire", "", orders.ActionVoid, true},
		{"cancel", "", orders.ActionVoid, true},
		{"failure", "", orders.ActionVoid, true},
		{"refund", "", "", false},
		{"authorize", "", "", false},
	}
	for _, c := range cases {
		got, ok := Decide(c.status, c.fraud)
		require.Equal(t, c.ok, ok, c.status+"/"+c.fraud)
		require.Equal(t, c.want, got, c.status+"/"+c.fraud)
	}
}

func TestAmountMatches(t *testing.T) {
	require.True(t, amountMatches("258650.00", 258650))
	require.True(t, amountMatches("258650", 258650))
	require.False(t, amountMatches("258650.50", 258650))
	require.False(t, amountMatches("", 258650))
	require.False(t, amountMatches("abc", 1))
}

func TestNotificationValidate(t *testing.T) {
	err := Notification{}.validate()
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Len(t, apperr.FieldsOf(err), 3)
	require.False(t, errors.Is(err, ErrInvalidSignature))
}
