// Package hotness scores how often keys are requested, decaying old hits.
package hotness

type Interface interface {
	Inc(key string)
	Score(key string) float64
	// WithPrefix returns the current score of every tracked key starting
	// with prefix.
	WithPrefix(prefix string) map[string]float64
	Reset(keys ...string)
}
