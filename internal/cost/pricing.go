package cost

// Rate is a model's price in USD per million tokens, by token category.
type Rate struct {
	InputPerMTok      float64 `yaml:"inputPerMTok"`
	OutputPerMTok     float64 `yaml:"outputPerMTok"`
	CacheReadPerMTok  float64 `yaml:"cacheReadPerMTok"`
	CacheWritePerMTok float64 `yaml:"cacheWritePerMTok"`
}

// Estimate converts a usage report into a USD amount at the given rate.
func Estimate(u Usage, r Rate) float64 {
	const perToken = 1.0 / 1_000_000
	return float64(u.InputTokens)*r.InputPerMTok*perToken +
		float64(u.OutputTokens)*r.OutputPerMTok*perToken +
		float64(u.CacheReadTokens)*r.CacheReadPerMTok*perToken +
		float64(u.CacheWriteTokens)*r.CacheWritePerMTok*perToken
}
