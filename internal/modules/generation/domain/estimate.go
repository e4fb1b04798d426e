package domain

// Estimate is the backend's cost prediction for a job configuration.
type Estimate struct {
	Tokens             int
	InputTokens        int
	OutputTokens       int
	Cost               float64
	InputCost          float64
	OutputCost         float64
	Pages              int
	Model              string
	EstimatedCardCount int
}
