package matching

import "strings"

// Filter returns the providers that pass every hard eligibility predicate,
// in input order. An empty result means no match is possible.
func Filter(requester Requester, providers []Provider) []Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if !sharesAvailability(requester, p) {
			continue
		}
		if !acceptsPayment(requester, p) {
			continue
		}
		if !needsOrLanguage(requester, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sharesAvailability(r Requester, p Provider) bool {
	if r.Availability.IsEmpty() {
		return true
	}
	return r.Availability.SharesSlotWith(p.Availability)
}

func acceptsPayment(r Requester, p Provider) bool {
	method := normalize(r.PaymentMethod)
	if method == "" {
		return true
	}
	for _, accepted := range p.AcceptedPayments {
		accepted = normalize(accepted)
		if accepted == AcceptsAllPayments || accepted == method {
			return true
		}
	}
	return false
}

// needsOrLanguage passes when specializations match a need or a language is
// shared. Each side holds vacuously when the requester declared nothing for it.
func needsOrLanguage(r Requester, p Provider) bool {
	return needsMatch(r.Needs, p.Specializations) || languageMatch(r.Languages, p.Languages)
}

func needsMatch(needs, specializations []string) bool {
	needs = normalizeAll(needs)
	if len(needs) == 0 {
		return true
	}
	for _, spec := range normalizeAll(specializations) {
		for _, need := range needs {
			if strings.Contains(spec, need) || strings.Contains(need, spec) {
				return true
			}
		}
	}
	return false
}

func languageMatch(wanted, spoken []string) bool {
	wanted = normalizeAll(wanted)
	if len(wanted) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(spoken))
	for _, lang := range normalizeAll(spoken) {
		set[lang] = struct{}{}
	}
	for _, lang := range wanted {
		if _, ok := set[lang]; ok {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAll lowercases and trims values, dropping blanks.
func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
