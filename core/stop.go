package core

// StopBehavior is the deceleration policy applied when a move completes
type StopBehavior uint8

const (
	StopHold StopBehavior = iota
	StopCoastSmart
	StopCoast
	StopBrake
)

func (s StopBehavior) String() string {
	switch s {
	case StopCoastSmart:
		return "COAST_SMART"
	case StopCoast:
		return "COAST"
	case StopBrake:
		return "BRAKE"
	}
	return "HOLD"
}

// ResolveStopBehavior maps a stop_behavior string to a StopBehavior.
// Unknown and empty names resolve to HOLD.
func ResolveStopBehavior(name string) StopBehavior {
	switch toLower(name) {
	case "coast_smart", "smart", "coast-smart":
		return StopCoastSmart
	case "coast":
		return StopCoast
	case "brake":
		return StopBrake
	}
	return StopHold
}
