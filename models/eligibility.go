package models

// Eligibility is the commerce backend's answer for one order.
type Eligibility struct {
	OrderID  string `json:"orderId"`
	SiteID   string `json:"siteId"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}
