package normalize

import "strings"

// Tristate is a boolean that distinguishes "not stated" from false.
// Wholesalers encode flags as booleans, 0/1, Y/N, or single-letter codes;
// an absent value must never be collapsed to false.
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// Bool returns the boolean value and whether it is known.
func (t Tristate) Bool() (value, known bool) {
	switch t {
	case True:
		return true, true
	case False:
		return false, true
	}
	return false, false
}

// ToBoolean coerces heterogeneous truthy encodings to a Tristate.
// nil stays Unknown; empty string is treated as an explicit false,
// matching how feed exports leave the column blank for "no".
func ToBoolean(v any) Tristate {
	switch val := v.(type) {
	case nil:
		return Unknown
	case bool:
		if val {
			return True
		}
		return False
	case int:
		return fromNumber(float64(val))
	case int64:
		return fromNumber(float64(val))
	case float64:
		return fromNumber(val)
	case string:
		return fromString(val)
	}
	return Unknown
}

func fromNumber(n float64) Tristate {
	if n == 0 {
		return False
	}
	return True
}

func fromString(s string) Tristate {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return False
	case "Y", "YES", "TRUE", "T", "1", "P":
		return True
	case "N", "NO", "FALSE", "F", "0":
		return False
	}
	return Unknown
}
