package util

import (
	"regexp"
	"strings"
)

var tenDigits = regexp.MustCompile(`(\d{3})(\d{3})(\d{4})`)

// DisplayPhone renders a North American number for humans: a leading +1 is dropped and the first run of
// ten digits becomes "(XXX) XXX-XXXX". Anything else passes through untouched.
func DisplayPhone(raw string) string {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "+1")

	loc := tenDigits.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}

	formatted := tenDigits.ExpandString(nil, "($1) $2-$3", s, loc)
	return s[:loc[0]] + string(formatted) + s[loc[1]:]
}
