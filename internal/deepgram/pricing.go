package deepgram

// perMinuteRates holds the static per-minute USD rate for each model tier.
// Lookup input only; no network call is ever made for cost estimation.
var perMinuteRates = map[string]float64{
	"nova-2":   0.0043,
	"nova":     0.0043,
	"enhanced": 0.0145,
	"base":     0.0125,
	"whisper":  0.0048,
}

// defaultRate applies when a model is not in the table.
const defaultRate = 0.0043

// EstimateCost returns the estimated USD cost of transcribing the given
// duration with the given model.
func EstimateCost(durationSeconds float64, model string) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	rate, ok := perMinuteRates[model]
	if !ok {
		rate = defaultRate
	}
	return durationSeconds / 60 * rate
}

// EstimateCost satisfies the provider interface with the static rate table.
func (c *Client) EstimateCost(durationSeconds float64, model string) float64 {
	if model == "" {
		model = c.config.Model
	}
	return EstimateCost(durationSeconds, model)
}

// KnownModels lists the models with a pricing entry.
func KnownModels() []string {
	models := make([]string, 0, len(perMinuteRates))
	for m := range perMinuteRates {
		models = append(models, m)
	}
	return models
}
