package utils

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/badoux/checkmail"
	"github.com/likexian/whois"
)

type VerificationResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"` // valid, invalid, disposable, unknown
	Details      string `json:"details"`
	IsBounceRisk bool   `json:"is_bounce_risk"`
	WHOIS        string `json:"whois,omitempty"`
}

var (
	disposableDomains = map[string]bool{
		"mailinator.com":    true,
		"guerrillamail.com": true,
		"10minutemail.com":  true,
		"tempmail.com":      true,
		"throwaway.email":   true,
		"yopmail.com":       true,
		"trashmail.com":     true,
		"sharklasers.com":   true,
	}

	// Common email typos
	commonTypos = map[string]string{
		"gmai.com":   "gmail.com",
		"gmal.com":   "gmail.com",
		"gmail.co":   "gmail.com",
		"yaho.com":   "yahoo.com",
		"hotmai.com": "hotmail.com",
		"outlok.com": "outlook.com",
	}

	// Domain to MX cache
	mxCache = struct {
		sync.RWMutex
		m map[string][]*net.MX
	}{m: make(map[string][]*net.MX)}
)

// VerifyEmailAddress checks syntax, known typos, disposable domains and MX
// records for a lead's email, plus WHOIS enrichment when requested.
func VerifyEmailAddress(email string, includeWHOIS bool) (*VerificationResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	result := &VerificationResult{
		Email:        email,
		Status:       "unknown",
		IsBounceRisk: true,
	}

	if err := checkmail.ValidateFormat(email); err != nil {
		result.Status = "invalid"
		result.Details = "Invalid email format: " + err.Error()
		return result, nil
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		result.Status = "invalid"
		result.Details = "Invalid email format"
		return result, nil
	}
	localPart, domain := parts[0], parts[1]

	if suggested, ok := commonTypos[domain]; ok {
		result.Status = "invalid"
		result.Details = fmt.Sprintf("Possible typo, did you mean %s@%s?", localPart, suggested)
		return result, nil
	}

	if disposableDomains[domain] {
		result.Status = "disposable"
		result.Details = "Disposable email domain"
		return result, nil
	}

	if _, err := lookupMX(domain); err != nil {
		result.Status = "invalid"
		result.Details = "Domain has no mail servers"
		return result, nil
	}

	result.Status = "valid"
	result.IsBounceRisk = false

	if includeWHOIS {
		if whoisInfo, err := whois.Whois(domain); err == nil {
			result.WHOIS = whoisInfo
		}
	}

	return result, nil
}

func lookupMX(domain string) ([]*net.MX, error) {
	mxCache.RLock()
	cached, ok := mxCache.m[domain]
	mxCache.RUnlock()
	if ok {
		return cached, nil
	}

	records, err := net.LookupMX(domain)
	if err != nil || len(records) == 0 {
		return nil, fmt.Errorf("no MX records for %s", domain)
	}

	mxCache.Lock()
	mxCache.m[domain] = records
	mxCache.Unlock()
	return records, nil
}
