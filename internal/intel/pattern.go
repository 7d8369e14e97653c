package intel

import (
	"regexp"
	"strings"
)

var (
	upiPattern     = regexp.MustCompile(`[a-zA-Z0-9.\-_]{3,}@[a-zA-Z]{3,}`)
	urlPattern     = regexp.MustCompile(`(?i)https?://(?:[-\w.]|%[0-9a-f]{2})+[^\s]*`)
	mobilePattern  = regexp.MustCompile(`(?:\+91[\-\s]?|\b)([6-9]\d{9})\b`)
	accountPattern = regexp.MustCompile(`\b\d{9,18}\b`)
)

// accountHints gate the bank account scan; long digit runs without one of
// these nearby words are usually order numbers or timestamps.
var accountHints = []string{"account", "ac", "bank"}

// SuspiciousKeywords are red-flag phrases checked by presence on lower-cased text.
var SuspiciousKeywords = []string{
	"urgent",
	"verify now",
	"account blocked",
	"kyc",
	"suspend",
	"block",
	"electricity",
	"cut",
}

// Extract scans text for the categories that have a reliable syntactic
// shape: UPI ids, links, Indian mobile numbers, bank accounts and red-flag
// keywords. Email, case, policy and order identifiers are left to the oracle.
func Extract(text string) Intelligence {
	lower := strings.ToLower(text)

	var out Intelligence
	out.UPIIDs = findUPI(text)
	out.PhishingLinks = urlPattern.FindAllString(text, -1)

	for _, m := range mobilePattern.FindAllStringSubmatch(text, -1) {
		out.PhoneNumbers = append(out.PhoneNumbers, m[1])
	}

	if containsAny(lower, accountHints) {
		out.BankAccounts = accountPattern.FindAllString(text, -1)
	}

	for _, kw := range SuspiciousKeywords {
		if strings.Contains(lower, kw) {
			out.SuspiciousKeywords = append(out.SuspiciousKeywords, kw)
		}
	}

	out.normalize()
	return out
}

// findUPI returns handle@provider tokens, skipping matches whose provider
// part continues as a domain name (name@mail.com is an email, not a UPI id).
func findUPI(text string) []string {
	var ids []string
	for _, loc := range upiPattern.FindAllStringIndex(text, -1) {
		end := loc[1]
		if end+1 < len(text) && (text[end] == '.' || text[end] == '-') && isAlnum(text[end+1]) {
			continue
		}
		ids = append(ids, text[loc[0]:end])
	}
	return ids
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
