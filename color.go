package ole

type Color int

const (
	Red Color = iota
	Black
)

func (c Color) AsByte() byte {
	switch c {
	case Red:
		return COLOR_RED
	case Black:
		return COLOR_BLACK
	default:
		return 0
	}
}

// ColorFromByte decodes the node color byte of a directory record.
func ColorFromByte(b byte) (Color, error) {
	switch b {
	case COLOR_RED:
		return Red, nil
	case COLOR_BLACK:
		return Black, nil
	default:
		return -1, nodeTypeError("color %v", b)
	}
}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return "unknown"
	}
}
