package relay

// AlarmState is the last state the relay confirmed
type AlarmState int

const (
	IDLE AlarmState = iota
	SOUNDING
)

func (s AlarmState) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case SOUNDING:
		return "SOUNDING"
	default:
		return "UNKNOWN"
	}
}

// Status is the wire value the buzzer relay understands
func (s AlarmState) Status() string {
	if s == SOUNDING {
		return "on"
	}
	return "off"
}
