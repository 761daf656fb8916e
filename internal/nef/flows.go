package nef

import (
	"fmt"
	"strconv"
	"strings"
)

// FullPortRange matches any port in a flow descriptor.
const FullPortRange = "0-65535"

// PortSet flattens a CAMARA ports specification into descriptor tokens.
// An empty set yields the full range.
type PortSet struct {
	Ports  []int
	Ranges [][2]int
}

// Tokens renders each port and range as a descriptor token.
func (p PortSet) Tokens() []string {
	if len(p.Ports) == 0 && len(p.Ranges) == 0 {
		return []string{FullPortRange}
	}
	tokens := make([]string, 0, len(p.Ports)+len(p.Ranges))
	for _, r := range p.Ranges {
		tokens = append(tokens, fmt.Sprintf("%d-%d", r[0], r[1]))
	}
	for _, port := range p.Ports {
		tokens = append(tokens, strconv.Itoa(port))
	}
	return tokens
}

// BuildFlowDescriptions renders the bidirectional packet filters for a QoS
// flow between a device and an application server. One "permit in" and one
// "permit out" rule per port combination, joined in a fixed order so the
// core sees a stable filter set.
func BuildFlowDescriptions(deviceIP, serverIP string, devicePorts, serverPorts PortSet) []string {
	var descriptions []string
	for _, dport := range devicePorts.Tokens() {
		for _, sport := range serverPorts.Tokens() {
			descriptions = append(descriptions,
				fmt.Sprintf("permit in ip from %s %s to %s %s", deviceIP, dport, serverIP, sport),
				fmt.Sprintf("permit out ip from %s %s to %s %s", serverIP, sport, deviceIP, dport),
			)
		}
	}
	return descriptions
}

// SimpleFlowDescription renders the host-to-host filter form used by cores
// that take CIDR-style descriptors.
func SimpleFlowDescription(deviceIP, serverIP string) string {
	return fmt.Sprintf("permit ip %s/32 to %s/32", deviceIP, serverIP)
}

// ServerIPFromDescription recovers the application server address from a
// flow descriptor, looking at the "to" clause. Returns empty when the
// descriptor does not carry one.
func ServerIPFromDescription(desc string) string {
	idx := strings.Index(desc, " to ")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(desc[idx+4:])
	if cut := strings.Index(rest, "/"); cut >= 0 {
		return rest[:cut]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
