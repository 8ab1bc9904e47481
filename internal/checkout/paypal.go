package checkout

import (
	"net/url"

	"github.com/shopspring/decimal"
)

const (
	paypalEndpoint = "https://www.paypal.com/cgi-bin/webscr"
	paypalItemName = "Glaze Cosmetics Order"
)

// PayPalURL is the _xclick payment link for total, paid to recipient.
func PayPalURL(recipient string, total decimal.Decimal, returnURL string) string {
	q := url.Values{}
	q.Set("cmd", "_xclick")
	q.Set("business", recipient)
	q.Set("currency_code", "USD")
	q.Set("amount", total.StringFixed(2))
	q.Set("item_name", paypalItemName)
	if returnURL != "" {
		q.Set("return", returnURL)
	}
	return paypalEndpoint + "?" + q.Encode()
}
