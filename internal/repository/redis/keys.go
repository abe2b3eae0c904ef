package redis

import "fmt"

const ns = "cinetix:v1"

func KeyStatusByPreference(preferenceID string) string {
	return fmt.Sprintf("%s:status:pref:%s", ns, preferenceID)
}

func KeyStatusByPayment(paymentID string) string {
	return fmt.Sprintf("%s:status:pay:%s", ns, paymentID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

// KeyWebhookLedger identifies one processed gateway state of a payment.
func KeyWebhookLedger(paymentID, status string) string {
	return fmt.Sprintf("%s:webhook:%s:%s", ns, paymentID, status)
}

func ChannelOrderStatus() string {
	return ns + ":orders:status"
}
