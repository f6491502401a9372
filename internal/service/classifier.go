package service

import "strings"

// ChannelPrefix maps a service identifier to the ticket channel name prefix.
// Rules are case-insensitive substring matches, first match wins.
func ChannelPrefix(serviceID string) string {
	s := strings.ToLower(serviceID)
	switch {
	case s == "":
		return "ticket"
	case strings.Contains(s, "base"), strings.Contains(s, "devis"):
		return "devis"
	case strings.Contains(s, "mapping"), strings.Contains(s, "map"):
		return "mapping"
	case strings.Contains(s, "script"):
		return "script"
	default:
		return "ticket"
	}
}
