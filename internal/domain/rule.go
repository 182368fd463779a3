package domain

// RuleConfig defines one weighted fraud-scoring rule. Expression is a CEL
// program over the activation variables the rule engine exposes (amount,
// currency, source, notes, response_code, hour, fraud_flag, tx). A rule
// that evaluates true adds Weight to the transaction's accumulated score;
// an Override rule that fires forces the score to 1.0 regardless of the
// other rules.
type RuleConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Version     string  `json:"version"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Override    bool    `json:"override"`
	Enabled     bool    `json:"enabled"`
}

// RuleResult is the outcome of evaluating a single rule against one
// transaction.
type RuleResult struct {
	RuleID   string  `json:"ruleId"`
	Fired    bool    `json:"fired"`
	Weight   float64 `json:"weight"`
	Override bool    `json:"override"`
	// Err holds the evaluation error message, if any. A rule that errors
	// contributes nothing to the score; it never aborts the batch.
	Err string `json:"err,omitempty"`
}
