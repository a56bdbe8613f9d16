package gtfs

import (
	"regexp"
	"strings"
	"sync"

	"github.com/transitlive/transitlive/arrivals"
)

// AddressLabels names the labeled segments of a stop's descriptive text.
// The schedule publisher encodes the stop address as a single string of
// labeled fields in the feed's source language; the labels are data, not
// code, so deployments against other feeds can substitute their own.
type AddressLabels struct {
	Street   string
	City     string
	Platform string
	Floor    string
}

// DefaultAddressLabels match the national schedule feed's labeling.
var DefaultAddressLabels = AddressLabels{
	Street:   "רחוב:",
	City:     "עיר:",
	Platform: "רציף:",
	Floor:    "קומה:",
}

var addressPatterns sync.Map // AddressLabels -> *regexp.Regexp

func (l AddressLabels) pattern() *regexp.Regexp {
	if p, ok := addressPatterns.Load(l); ok {
		return p.(*regexp.Regexp)
	}
	p := regexp.MustCompile(
		"(?:" + regexp.QuoteMeta(l.Street) + ")(.*)" +
			"(?:" + regexp.QuoteMeta(l.City) + ")(.*)" +
			"(?:" + regexp.QuoteMeta(l.Platform) + ")(.*)" +
			"(?:" + regexp.QuoteMeta(l.Floor) + ")(.*)")
	addressPatterns.Store(l, p)
	return p
}

// ParseAddress matches desc against the labeled address shape. A failed
// match yields nil rather than an error: plenty of stops carry free-form
// or empty descriptions.
func ParseAddress(desc string, labels AddressLabels) *arrivals.Address {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil
	}
	m := labels.pattern().FindStringSubmatch(desc)
	if m == nil {
		return nil
	}
	return &arrivals.Address{
		Street:   strings.TrimSpace(m[1]),
		City:     strings.TrimSpace(m[2]),
		Platform: strings.TrimSpace(m[3]),
		Floor:    strings.TrimSpace(m[4]),
	}
}
