package sensor

import "strings"

// NormalizeEUI reduces a device EUI to its canonical form: upper-case
// hexadecimal digits only. Separators and any other characters are dropped.
//
//	NormalizeEUI("70:b3:d5:7e:d0:03:ab:cd") == "70B3D57ED003ABCD"
//
// The result may be empty. Length is not checked.
func NormalizeEUI(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F':
			b.WriteByte(c)
		case c >= 'a' && c <= 'f':
			b.WriteByte(c - 'a' + 'A')
		}
	}
	return b.String()
}

// NormalizeEUIValue normalises a decoded JSON value. Anything that is not a
// string yields "".
func NormalizeEUIValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return NormalizeEUI(s)
}

// PlaceholderName is the display name given to auto-registered sensors.
func PlaceholderName(eui string) string {
	return "Sensor " + eui
}
