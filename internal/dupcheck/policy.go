package dupcheck

import "time"

// Policy configures one duplicate check. It is passed explicitly at call
// time; there is no process-wide mutable state behind it.
type Policy struct {
	// Window bounds how far back the requester's own orders are inspected.
	Window time.Duration
	// ForceOverride bypasses the check entirely.
	ForceOverride bool
}

// DefaultWindow is the trailing window a double-click realistically falls in.
const DefaultWindow = 5 * time.Minute

func (p Policy) withDefaults() Policy {
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}
