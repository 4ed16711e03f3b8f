package knowledge

import "time"

// Defaults observed across the bot deployments.
const (
	DefaultTopK         = 3
	DefaultThreshold    = 0.85
	DefaultQueryTimeout = 10 * time.Second
)

// Config holds runtime knobs for the retrieval gate.
type Config struct {
	TopK         int
	Threshold    float64
	QueryTimeout time.Duration
}

// withDefaults fills zero values. A zero threshold is kept as is: it is a
// legitimate "accept everything" setting.
func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.QueryTimeout < 0 {
		c.QueryTimeout = 0
	}
	return c
}
