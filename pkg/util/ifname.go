package util

import (
	"sort"
	"strings"
)

var (
	// shortToLong maps abbreviations seen in device output to full type names
	shortToLong = map[string]string{
		"eth":  "Ethernet",
		"et":   "Ethernet",
		"gi":   "GigabitEthernet",
		"te":   "TenGigE",
		"po":   "PortChannel",
		"be":   "Bundle-Ether",
		"lo":   "Loopback",
		"vl":   "Vlan",
		"vlan": "Vlan",
		"mgmt": "Management",
	}

	// shortToLongSorted holds the keys longest-first so "vlan" wins over "vl".
	shortToLongSorted []string
)

func init() {
	shortToLongSorted = make([]string, 0, len(shortToLong))
	for k := range shortToLong {
		shortToLongSorted = append(shortToLongSorted, k)
	}
	sort.Slice(shortToLongSorted, func(i, j int) bool {
		if len(shortToLongSorted[i]) != len(shortToLongSorted[j]) {
			return len(shortToLongSorted[i]) > len(shortToLongSorted[j])
		}
		return shortToLongSorted[i] < shortToLongSorted[j]
	})
}

// NormalizeInterfaceName expands abbreviated interface names
// lo45 -> Loopback45, Po100 -> PortChannel100, Gi0/0/1 -> GigabitEthernet0/0/1.
// Names that are already long, or unknown, are returned unchanged.
func NormalizeInterfaceName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)

	for _, abbr := range shortToLongSorted {
		long := shortToLong[abbr]
		if strings.HasPrefix(lower, strings.ToLower(long)) {
			return name
		}
		if strings.HasPrefix(lower, abbr) && len(name) > len(abbr) {
			suffix := name[len(abbr):]
			if suffix[0] >= '0' && suffix[0] <= '9' {
				return long + suffix
			}
		}
	}

	return name
}
