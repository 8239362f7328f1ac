package models

import "time"

// PaymentAttempt is the audit record of one start-payment call.
type PaymentAttempt struct {
	ID             string        `bson:"id" json:"id"`
	SiteID         string        `bson:"siteId" json:"siteId"`
	OrderID        string        `bson:"orderId" json:"orderId"`
	Amount         string        `bson:"amount" json:"amount"` // decimal string, major units
	Currency       string        `bson:"currency" json:"currency"`
	State          string        `bson:"state" json:"state"`
	History        []StateChange `bson:"history" json:"history"`
	IntentID       string        `bson:"intentId,omitempty" json:"intentId,omitempty"`
	ReaderID       string        `bson:"readerId,omitempty" json:"readerId,omitempty"`
	FailureClass   string        `bson:"failureClass,omitempty" json:"failureClass,omitempty"`
	FailureCode    string        `bson:"failureCode,omitempty" json:"failureCode,omitempty"`
	FailureMessage string        `bson:"failureMessage,omitempty" json:"failureMessage,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// StateChange is one transition of the payment session state machine.
type StateChange struct {
	From string    `bson:"from" json:"from"`
	To   string    `bson:"to" json:"to"`
	At   time.Time `bson:"at" json:"at"`
}
