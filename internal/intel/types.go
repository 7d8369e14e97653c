package intel

import "sort"

// Intelligence is the set of fraud indicators found in a conversation. Every
// category holds each value at most once; values are kept sorted so two
// records with the same contents compare equal.
type Intelligence struct {
	PhoneNumbers       []string `json:"phoneNumbers"`
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
	EmailAddresses     []string `json:"emailAddresses"`
	CaseIDs            []string `json:"caseIds"`
	PolicyNumbers      []string `json:"policyNumbers"`
	OrderNumbers       []string `json:"orderNumbers"`
}

// Empty returns a record with every category present and empty, which
// serializes as [] rather than null.
func Empty() Intelligence {
	var in Intelligence
	in.normalize()
	return in
}

func (in *Intelligence) categories() []*[]string {
	return []*[]string{
		&in.PhoneNumbers,
		&in.BankAccounts,
		&in.UPIIDs,
		&in.PhishingLinks,
		&in.SuspiciousKeywords,
		&in.EmailAddresses,
		&in.CaseIDs,
		&in.PolicyNumbers,
		&in.OrderNumbers,
	}
}

// Count is the total number of values across all nine categories.
func (in Intelligence) Count() int {
	n := 0
	for _, c := range in.categories() {
		n += len(*c)
	}
	return n
}

// IsEmpty reports whether no category has a value.
func (in Intelligence) IsEmpty() bool {
	return in.Count() == 0
}

// HasPaymentIdentifier reports whether the actor has offered a way to move
// money: an account, a UPI id, a link or a phone number.
func (in Intelligence) HasPaymentIdentifier() bool {
	return len(in.BankAccounts)+len(in.UPIIDs)+len(in.PhishingLinks)+len(in.PhoneNumbers) > 0
}

func (in *Intelligence) normalize() {
	for _, c := range in.categories() {
		*c = uniq(*c)
	}
}

// uniq returns a sorted copy of values without duplicates or empty strings.
func uniq(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
