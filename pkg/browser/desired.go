package browser

import (
	"sort"
	"strconv"
	"strings"
)

// ParseLoraList parses the delimited LoRA grammar "name[:weight], name[:weight], ...".
// Whitespace around names and weights is ignored, empty entries are dropped,
// and a weight that does not parse as a number is treated as absent so the
// remote UI's default applies.
func ParseLoraList(s string) []DesiredLora {
	var loras []DesiredLora
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		var weight *float64
		if idx := strings.LastIndex(part, ":"); idx > 0 {
			candidate := strings.TrimSpace(part[:idx])
			if w, err := strconv.ParseFloat(strings.TrimSpace(part[idx+1:]), 64); err == nil {
				name = candidate
				weight = &w
			}
		}
		loras = append(loras, DesiredLora{Name: name, Weight: weight})
	}
	return loras
}

// sameLoraNameSet reports whether two name lists are equal ignoring order.
func sameLoraNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
