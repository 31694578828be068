package engine

// Level is a two-valued logic level on a sensor line.
type Level uint8

const (
	Low Level = iota
	High
)

// Not returns the complemented level.
func (l Level) Not() Level {
	if l == High {
		return Low
	}
	return High
}

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}
