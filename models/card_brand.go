package models

// CardBrand is the network brand of a presented card.
type CardBrand string

const (
	CardBrandVisa       CardBrand = "visa"
	CardBrandMastercard CardBrand = "mastercard"
	CardBrandAmex       CardBrand = "amex"
	CardBrandDiscover   CardBrand = "discover"
	CardBrandDiners     CardBrand = "diners"
	CardBrandJCB        CardBrand = "jcb"
	CardBrandUnionPay   CardBrand = "unionpay"
	CardBrandInterac    CardBrand = "interac"
	CardBrandUnknown    CardBrand = "unknown"
)
