package models

// ReaderType is the hardware model of a card reader, independent of any vendor SDK.
type ReaderType string

const (
	ReaderTypeChipper2X ReaderType = "chipper2X"
	ReaderTypeStripeM2  ReaderType = "stripeM2"
	ReaderTypeWisePad3  ReaderType = "wisePad3"
	ReaderTypeWisePOSE  ReaderType = "wisePOSE"
	ReaderTypeOther     ReaderType = "other"
)

// Reader is a card reader found during discovery.
type Reader struct {
	ID              string     `json:"id"`
	SerialNumber    string     `json:"serialNumber"`
	Label           string     `json:"label,omitempty"`
	Type            ReaderType `json:"type"`
	SoftwareVersion string     `json:"softwareVersion,omitempty"`
	BatteryLevel    *float64   `json:"batteryLevel,omitempty"`
	Online          bool       `json:"online"`
	Remembered      bool       `json:"remembered"` // previously paired
}

// CardReaderStatus is a snapshot of reader connectivity. Remembered does not
// imply Connected: a reader can be known to the SDK and still be offline.
type CardReaderStatus struct {
	Connected  bool `json:"connected"`
	Remembered bool `json:"remembered"`
}
