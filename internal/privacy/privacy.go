// Package privacy redacts credentials and contact details before they reach
// logs, error reports or command output.
package privacy

import (
	"net/mail"
	"regexp"
	"strings"
)

// Redacted replaces removed secrets.
const Redacted = "[REDACTED]"

var (
	queryPattern      = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://[^?\s"']+)\?[^\s"']*`)
	userinfoPattern   = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^@/\s"']+@`)
	credentialPattern = regexp.MustCompile(`(?i)(password|passwd|token|secret|api[_-]?key)[=:]\S+`)
	urlPattern        = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)
)

// ScrubMessage removes URL query strings, URL credentials and key=value
// secrets from message while keeping scheme, host and path.
func ScrubMessage(message string) string {
	scrubbed := queryPattern.ReplaceAllString(message, "$1?"+Redacted)
	scrubbed = userinfoPattern.ReplaceAllString(scrubbed, "$1"+Redacted+"@")
	return credentialPattern.ReplaceAllString(scrubbed, "$1="+Redacted)
}

// HideURLs replaces every URL in message with its bare scheme. Notification
// service URLs carry tokens anywhere in host, path or query, so nothing but
// the scheme is safe to keep.
func HideURLs(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, func(raw string) string {
		scheme, _, _ := strings.Cut(raw, "://")
		return scheme + "://[redacted]"
	})
}

// MaskEmail keeps the first character of the local part and the domain.
// Strings that are not an address are fully masked.
func MaskEmail(address string) string {
	if address == "" {
		return ""
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return Redacted
	}
	local, domain, ok := strings.Cut(parsed.Address, "@")
	if !ok || local == "" {
		return Redacted
	}
	return local[:1] + "***@" + domain
}
