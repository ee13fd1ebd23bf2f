package verifier

import (
	"strconv"
	"strings"
)

// ParsePorts parses a comma-separated port list ("25,587") into the ordered
// slice Options.Ports expects. Returns ErrBadPorts on any malformed or
// out-of-range entry.
func ParsePorts(s string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil || p < 1 || p > 65535 {
			return nil, ErrBadPorts
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, ErrBadPorts
	}
	return ports, nil
}
