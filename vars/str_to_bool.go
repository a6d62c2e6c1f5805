package vars

import "strings"

func StrToBool(str string) bool {
	v, _ := ParseBool(str)
	return v
}

// ParseBool reports the boolean meaning of str and whether str is a recognized boolean word.
func ParseBool(str string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "true", "t", "yes", "y", "1", "on":
		return true, true
	case "false", "f", "no", "n", "0", "off":
		return false, true
	}
	return false, false
}
