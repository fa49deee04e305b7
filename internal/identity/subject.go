package identity

import (
	"regexp"
	"strings"
	"unicode"
)

// SubjectIdentity is the agent identity a certificate subject asserts.
type SubjectIdentity struct {
	AgentName string `json:"agent_name,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
}

// Empty reports whether nothing was recognised.
func (s SubjectIdentity) Empty() bool {
	return s.AgentName == "" && s.OwnerID == ""
}

var (
	kvSeparators   = regexp.MustCompile(`[;,|]`)
	listSeparators = regexp.MustCompile(`[,|]`)
)

// ParseSubjectIdentity reads an agent name and owner id out of a subject
// attribute value. Accepted shapes:
//
//	agent_name,owner_id
//	agent=name;owner=id   (also ":" and "|" separators)
//	agent_name
//	1234                  (owner id only, four or more digits)
//
// Masked values and short country-like codes are ignored.
func ParseSubjectIdentity(value string) SubjectIdentity {
	raw := strings.TrimSpace(value)
	if raw == "" || isMasked(raw) || isShortCode(raw) {
		return SubjectIdentity{}
	}
	if isOwnerDigits(raw) {
		return SubjectIdentity{OwnerID: raw}
	}

	if id := parseKeyValues(raw); !id.Empty() {
		return id
	}

	var parts []string
	for _, p := range listSeparators.Split(raw, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch {
	case len(parts) >= 2:
		return SubjectIdentity{AgentName: parts[0], OwnerID: parts[1]}
	case len(parts) == 1:
		if isOwnerDigits(parts[0]) {
			return SubjectIdentity{OwnerID: parts[0]}
		}
		if isShortCode(parts[0]) {
			return SubjectIdentity{}
		}
		return SubjectIdentity{AgentName: parts[0]}
	}
	return SubjectIdentity{}
}

// parseKeyValues reads the agent=name;owner=id form only.
func parseKeyValues(raw string) SubjectIdentity {
	var id SubjectIdentity
	if !strings.ContainsAny(raw, "=:") {
		return id
	}
	for _, chunk := range kvSeparators.Split(raw, -1) {
		key, val, ok := strings.Cut(chunk, "=")
		if !ok {
			key, val, ok = strings.Cut(chunk, ":")
		}
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch key {
		case "agent", "agent_name", "name":
			id.AgentName = val
		case "owner", "owner_id", "uid", "user_id", "responsible_id":
			id.OwnerID = val
		}
	}
	return id
}

func isMasked(s string) bool {
	if !strings.Contains(s, "*") {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isOwnerDigits(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isShortCode matches values such as "CN" or "US" that carry no identity.
func isShortCode(s string) bool {
	if len([]rune(s)) > 2 {
		return false
	}
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}
