package adapter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// acmeDevice simulates the running configuration of an acme switch.
type acmeDevice struct {
	mu       sync.Mutex
	stanzas  map[string]*stanza
	hostname string
	domain   string
	timezone string
}

type stanza struct {
	attrs   map[string]string
	members []string
}

var (
	reNoIntf      = regexp.MustCompile(`^no interface (loopback|ethernet) (\S+)$`)
	reDefaultIntf = regexp.MustCompile(`^default interface ethernet (\S+)$`)
	reIntf        = regexp.MustCompile(`^interface (loopback|ethernet) (\S+)$`)
	reVlan        = regexp.MustCompile(`^vlan (\d+)$`)
	reNoVlan      = regexp.MustCompile(`^no vlan (\d+)$`)
	reAttr        = regexp.MustCompile(`^(port-name|mtu|name) (.+)$`)
	reMember      = regexp.MustCompile(`^member (\S+)$`)
	reHostname    = regexp.MustCompile(`^hostname (\S+)$`)
	reShowIntf    = regexp.MustCompile(`^show running-config interface (\S+)$`)
	reShowVlan    = regexp.MustCompile(`^show vlan (\d+)$`)
	reLoopback    = regexp.MustCompile(`^Loopback(\d+)$`)
	reEthernet    = regexp.MustCompile(`^Ethernet(\d+/\d+)$`)
)

func newAcmeDevice() *acmeDevice {
	return &acmeDevice{
		stanzas:  map[string]*stanza{},
		hostname: "leaf1",
		domain:   "example.net",
		timezone: "UTC",
	}
}

// handle answers one payload, applying configuration lines in order.
func (d *acmeDevice) handle(payload string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload = strings.TrimSpace(payload)
	switch {
	case payload == "show hostname":
		return fmt.Sprintf("Hostname: %s\nFQDN: %s.%s\n", d.hostname, d.hostname, d.domain), true
	case payload == "show clock":
		return "Fri Oct 16 10:00:00 2026\nTimezone: " + d.timezone + "\n", true
	case reShowIntf.MatchString(payload):
		return d.runningInterfaces(), true
	case reShowVlan.MatchString(payload):
		id := reShowVlan.FindStringSubmatch(payload)[1]
		out := "VLAN  Name      Status   Ports\n----  --------  -------  -----\n"
		if s, ok := d.stanzas["vlan "+id]; ok {
			out += fmt.Sprintf("%-5s %-9s active   %s\n", id, s.attrs["name"], strings.Join(s.members, ", "))
		}
		return out, true
	}

	var out strings.Builder
	var cur *stanza
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case line == "end":
			cur = nil
		case reNoIntf.MatchString(line):
			m := reNoIntf.FindStringSubmatch(line)
			delete(d.stanzas, "interface "+m[1]+" "+m[2])
		case reDefaultIntf.MatchString(line):
			delete(d.stanzas, "interface ethernet "+reDefaultIntf.FindStringSubmatch(line)[1])
		case reNoVlan.MatchString(line):
			delete(d.stanzas, "vlan "+reNoVlan.FindStringSubmatch(line)[1])
		case reIntf.MatchString(line), reVlan.MatchString(line):
			cur = d.enter(line)
		case reHostname.MatchString(line):
			d.hostname = reHostname.FindStringSubmatch(line)[1]
		case line == "no hostname":
			d.hostname = "localhost"
		case cur != nil && reAttr.MatchString(line):
			m := reAttr.FindStringSubmatch(line)
			cur.attrs[m[1]] = m[2]
		case cur != nil && line == "no port-name":
			delete(cur.attrs, "port-name")
		case cur != nil && reMember.MatchString(line):
			cur.members = append(cur.members, reMember.FindStringSubmatch(line)[1])
		case cur != nil && line == "enable":
			cur.attrs["shutdown"] = "no"
		case cur != nil && line == "disable":
			cur.attrs["shutdown"] = "yes"
		default:
			fmt.Fprintf(&out, "%s\n%% Invalid input detected at '^' marker.\n", line)
		}
	}
	return out.String(), true
}

func (d *acmeDevice) enter(header string) *stanza {
	s, ok := d.stanzas[header]
	if !ok {
		s = &stanza{attrs: map[string]string{}}
		d.stanzas[header] = s
	}
	return s
}

// runningInterfaces prints every interface stanza, as the device does for
// any interface name.
func (d *acmeDevice) runningInterfaces() string {
	var headers []string
	for h := range d.stanzas {
		if strings.HasPrefix(h, "interface ") {
			headers = append(headers, h)
		}
	}
	sort.Strings(headers)

	var b strings.Builder
	for _, h := range headers {
		s := d.stanzas[h]
		b.WriteString(h + "\n")
		if v, ok := s.attrs["port-name"]; ok {
			b.WriteString("   port-name " + v + "\n")
		}
		if v, ok := s.attrs["mtu"]; ok {
			b.WriteString("   mtu " + v + "\n")
		}
		if s.attrs["shutdown"] == "yes" {
			b.WriteString("   shutdown\n")
		} else {
			b.WriteString("   no shutdown\n")
		}
		b.WriteString("!\n")
	}
	return b.String()
}

// interfaceHeader maps an interface name to its stanza header.
func interfaceHeader(name string) string {
	if m := reLoopback.FindStringSubmatch(name); m != nil {
		return "interface loopback " + m[1]
	}
	if m := reEthernet.FindStringSubmatch(name); m != nil {
		return "interface ethernet " + m[1]
	}
	return ""
}

func (d *acmeDevice) has(header string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.stanzas[header]
	return ok
}
