package feed

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// BackoffConfig controls reconnect delays of a subscription.
type BackoffConfig struct {
	Base time.Duration // Base первая задержка, удваивается на каждой попытке
	Max  time.Duration // Max верхняя граница задержки
	// DisconnectAfter число подряд неудачных попыток, после которого канал
	// считается Disconnected. Попытки при этом продолжаются.
	DisconnectAfter int
}

// DefaultBackoff returns 1s → 2s → 4s … capped at 30s, disconnected after 5 failures.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Base:            time.Second,
		Max:             30 * time.Second,
		DisconnectAfter: 5,
	}
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	def := DefaultBackoff()
	if c.Base <= 0 {
		c.Base = def.Base
	}
	if c.Max <= 0 {
		c.Max = def.Max
	}
	if c.Max < c.Base {
		c.Max = c.Base
	}
	if c.DisconnectAfter <= 0 {
		c.DisconnectAfter = def.DisconnectAfter
	}
	return c
}

// newBackoff returns a fresh exponential sequence; a new one is taken after
// every successful connect, which is how the retry count resets.
func (c BackoffConfig) newBackoff() retry.Backoff {
	c = c.withDefaults()
	return retry.WithCappedDuration(c.Max, retry.NewExponential(c.Base))
}

// Delays returns the first n delays of the sequence.
func (c BackoffConfig) Delays(n int) []time.Duration {
	b := c.newBackoff()
	out := make([]time.Duration, 0, n)
	for range n {
		d, _ := b.Next()
		out = append(out, d)
	}
	return out
}
