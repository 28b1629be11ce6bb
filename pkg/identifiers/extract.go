// Package identifiers extracts, normalizes and validates the personal
// identifiers that appear on land applications and their supporting documents:
// National Registration Card numbers, taxpayer numbers, phone numbers and emails.
package identifiers

import (
	"regexp"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind names an identifier family.
type Kind string

const (
	KindNRC   Kind = "nrc"
	KindTPIN  Kind = "tpin"
	KindPhone Kind = "phone"
	KindEmail Kind = "email"
)

// Kinds lists every identifier kind in extraction order.
var Kinds = []Kind{KindNRC, KindTPIN, KindPhone, KindEmail}

// These patterns must stay byte-compatible with the data already stored by
// the registration front office.
var (
	nrcPattern   = regexp.MustCompile(`\b\d{6}/\d{2}/\d\b`)
	tpinPattern  = regexp.MustCompile(`\b[1-9]\d{9}\b`)
	phonePattern = regexp.MustCompile(`(?:\+260|0)(?:95|96|97|76|77|75|78)\d{7}`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

var patterns = map[Kind]*regexp.Regexp{
	KindNRC:   nrcPattern,
	KindTPIN:  tpinPattern,
	KindPhone: phonePattern,
	KindEmail: emailPattern,
}

// Set holds the identifiers found in a piece of text, one set per kind.
type Set map[Kind]mapset.Set[string]

// NewSet returns a Set with an empty entry for every kind.
func NewSet() Set {
	s := make(Set, len(Kinds))
	for _, k := range Kinds {
		s[k] = mapset.NewThreadUnsafeSet[string]()
	}
	return s
}

// Extract scans text for identifiers. Values are returned as they appear in
// the text; callers compare them through Normalize. Empty or garbled input
// yields empty sets.
func Extract(text string) Set {
	s := NewSet()
	if text == "" {
		return s
	}
	for _, k := range Kinds {
		for _, m := range patterns[k].FindAllString(text, -1) {
			s[k].Add(m)
		}
	}
	return s
}

// Add records value under kind after normalizing it. Empty values are ignored.
func (s Set) Add(kind Kind, value string) {
	n := Normalize(kind, value)
	if n == "" {
		return
	}
	if _, ok := s[kind]; !ok {
		s[kind] = mapset.NewThreadUnsafeSet[string]()
	}
	s[kind].Add(n)
}

// Normalized returns a copy of s with every value passed through Normalize.
func (s Set) Normalized() Set {
	out := NewSet()
	for k, vals := range s {
		for v := range vals.Iter() {
			out.Add(k, v)
		}
	}
	return out
}

// Merge adds every identifier of other into s.
func (s Set) Merge(other Set) {
	for k, vals := range other {
		if _, ok := s[k]; !ok {
			s[k] = mapset.NewThreadUnsafeSet[string]()
		}
		s[k] = s[k].Union(vals)
	}
}

// Empty reports whether no identifier of any kind is present.
func (s Set) Empty() bool {
	for _, vals := range s {
		if vals.Cardinality() > 0 {
			return false
		}
	}
	return true
}

// Common returns, per kind, the number of identifiers present in both sets.
func (s Set) Common(other Set) map[Kind]int {
	out := make(map[Kind]int)
	for _, k := range Kinds {
		a, b := s[k], other[k]
		if a == nil || b == nil {
			continue
		}
		if n := a.Intersect(b).Cardinality(); n > 0 {
			out[k] = n
		}
	}
	return out
}
