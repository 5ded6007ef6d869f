package billing

import "strings"

// Reason labels a balance change on a Transaction row.
type Reason string

const (
	ReasonMessage        Reason = "message"
	ReasonLongResponse   Reason = "long_response"
	ReasonCodeGeneration Reason = "code_generation"
	ReasonContinuation   Reason = "continuation"
	ReasonPurchase       Reason = "purchase"
	ReasonPromo          Reason = "promo"
)

const codeFenceMarker = "```"

type CreditConfig struct {
	MessageCost           int64 `json:"messageCost" yaml:"message-cost" mapstructure:"message-cost"`
	LongResponseCost      int64 `json:"longResponseCost" yaml:"long-response-cost" mapstructure:"long-response-cost"`
	CodeGenerationCost    int64 `json:"codeGenerationCost" yaml:"code-generation-cost" mapstructure:"code-generation-cost"`
	ContinuationCost      int64 `json:"continuationCost" yaml:"continuation-cost" mapstructure:"continuation-cost"`
	LongResponseThreshold int   `json:"longResponseThreshold" yaml:"long-response-threshold" mapstructure:"long-response-threshold"`
}

func (c *CreditConfig) Prepare() {
	if c.MessageCost == 0 {
		c.MessageCost = 1
	}
	if c.LongResponseCost == 0 {
		c.LongResponseCost = 2
	}
	if c.CodeGenerationCost == 0 {
		c.CodeGenerationCost = 3
	}
	if c.ContinuationCost == 0 {
		c.ContinuationCost = 1
	}
	if c.LongResponseThreshold == 0 {
		c.LongResponseThreshold = 1000
	}
}

// CostOf returns the charge for a tier. Purchase and promo reasons are
// credits, not charges, and cost nothing.
func (c CreditConfig) CostOf(r Reason) int64 {
	switch r {
	case ReasonCodeGeneration:
		return c.CodeGenerationCost
	case ReasonLongResponse:
		return c.LongResponseCost
	case ReasonContinuation:
		return c.ContinuationCost
	case ReasonMessage:
		return c.MessageCost
	}
	return 0
}

// MinCost is the cheapest possible charge, used by the pre-flight check.
func (c CreditConfig) MinCost() int64 {
	return c.MessageCost
}

// AssessTier classifies a completed response into a cost tier. Evaluated
// highest-specificity-first: a fenced code block beats length, length beats
// the base tier. Only called once per session, after the full response is
// known, since partial content cannot be classified.
func AssessTier(cfg CreditConfig, text string, accumulatedLength int) Reason {
	if strings.Contains(text, codeFenceMarker) {
		return ReasonCodeGeneration
	}
	if accumulatedLength > cfg.LongResponseThreshold {
		return ReasonLongResponse
	}
	return ReasonMessage
}
