package utils

import (
	"net"
	"strings"
	"sync"

	"github.com/badoux/checkmail"
	"github.com/likexian/whois"
)

// LeadEmailCheck is the outcome of verifying a lead's contact email.
// Verification never blocks lead intake; a bad result is a warning.
type LeadEmailCheck struct {
	Email        string `json:"email"`
	Status       string `json:"status"` // valid, invalid, disposable, unknown
	Details      string `json:"details"`
	HasMX        bool   `json:"has_mx"`
	IsBounceRisk bool   `json:"is_bounce_risk"`
}

var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"throwaway.email":   {},
	"yopmail.com":       {},
	"getnada.com":       {},
	"trashmail.com":     {},
}

// Domain to MX cache
var mxCache = struct {
	sync.RWMutex
	m map[string]bool
}{m: make(map[string]bool)}

// VerifyLeadEmail checks syntax, disposable domains and MX records for
// a lead's email address.
func VerifyLeadEmail(email string) *LeadEmailCheck {
	email = strings.ToLower(strings.TrimSpace(email))
	result := &LeadEmailCheck{
		Email:        email,
		Status:       "unknown",
		IsBounceRisk: true,
	}

	if err := checkmail.ValidateFormat(email); err != nil {
		result.Status = "invalid"
		result.Details = "invalid email format: " + err.Error()
		return result
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		result.Status = "invalid"
		result.Details = "invalid email format"
		return result
	}
	domain := parts[1]

	if _, ok := disposableDomains[domain]; ok {
		result.Status = "disposable"
		result.Details = "disposable email domain"
		return result
	}

	if hasMXRecords(domain) {
		result.HasMX = true
		result.Status = "valid"
		result.IsBounceRisk = false
	} else {
		result.Status = "invalid"
		result.Details = "no MX records for domain"
	}
	return result
}

func hasMXRecords(domain string) bool {
	mxCache.RLock()
	cached, ok := mxCache.m[domain]
	mxCache.RUnlock()
	if ok {
		return cached
	}

	records, err := net.LookupMX(domain)
	has := err == nil && len(records) > 0

	mxCache.Lock()
	mxCache.m[domain] = has
	mxCache.Unlock()
	return has
}

// DomainWhois returns the raw whois record for an email's domain, used
// for manual review of suspicious lead sources.
func DomainWhois(email string) (string, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "", checkmail.ErrBadFormat
	}
	return whois.Whois(parts[1])
}
