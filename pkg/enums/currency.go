package enums

// Currency is the denomination of listing prices and request budgets.
type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

var currencies = newSet("currency", CurrencyTRY, CurrencyUSD, CurrencyEUR, CurrencyGBP)

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return currencies.has(c) }

func ParseCurrency(value string) (Currency, error) { return currencies.parse(value) }
