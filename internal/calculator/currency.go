package calculator

// Currency is a supported trip or expense currency.
type Currency struct {
	Code string
	Name string
}

// DefaultBaseCurrency is used when a trip is created without one.
const DefaultBaseCurrency = "SEK"

// Currencies lists the supported currencies.
var Currencies = []Currency{
	{Code: "SEK", Name: "Swedish Krona"},
	{Code: "NOK", Name: "Norwegian Krone"},
	{Code: "EUR", Name: "Euro"},
	{Code: "USD", Name: "US Dollar"},
	{Code: "GBP", Name: "British Pound"},
	{Code: "DKK", Name: "Danish Krone"},
	{Code: "CHF", Name: "Swiss Franc"},
	{Code: "JPY", Name: "Japanese Yen"},
	{Code: "CAD", Name: "Canadian Dollar"},
	{Code: "AUD", Name: "Australian Dollar"},
	{Code: "PLN", Name: "Polish Zloty"},
	{Code: "CZK", Name: "Czech Koruna"},
	{Code: "HUF", Name: "Hungarian Forint"},
	{Code: "THB", Name: "Thai Baht"},
	{Code: "SGD", Name: "Singapore Dollar"},
	{Code: "HKD", Name: "Hong Kong Dollar"},
	{Code: "NZD", Name: "New Zealand Dollar"},
}

// IsSupportedCurrency reports whether code is in Currencies.
func IsSupportedCurrency(code string) bool {
	for _, c := range Currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}
