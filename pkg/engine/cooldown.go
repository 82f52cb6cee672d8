package engine

import "time"

// CooldownTable tracks the last emission time per alert/suggestion key.
// A key is allowed to fire again only after its cooldown window has fully
// elapsed; a suppressed signal is dropped, never queued.
type CooldownTable map[string]time.Time

// Allow reports whether the key may fire at now given its window, and
// records the emission when it may. Unknown keys always fire.
func (c CooldownTable) Allow(key string, window time.Duration, now time.Time) bool {
	if last, ok := c[key]; ok && now.Sub(last) < window {
		return false
	}
	c[key] = now
	return true
}
