package common

//go:generate go run github.com/dmarkham/enumer -json -type AssetStatus -trimprefix Status

// AssetStatus is the activation state of a scene asset
type AssetStatus int

const (
	StatusINACTIVE AssetStatus = iota
	StatusACTIVATING
	StatusACTIVE
	StatusFAILED
	StatusUNSUPPORTED
)

//go:generate go run github.com/dmarkham/enumer -json -type Outcome -trimprefix Outcome

// Outcome is the terminal state of a scene download
type Outcome int

const (
	OutcomeSAVED Outcome = iota
	OutcomeEXISTS
	OutcomeFAILED
)
