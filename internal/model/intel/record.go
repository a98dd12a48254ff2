package intel

import (
	"sort"
	"strings"
)

// Category names an intelligence bucket. Extractors may emit categories outside
// the known set; they are kept as-is.
type Category = string

const (
	UPIIDs         Category = "upi_ids"
	URLs           Category = "urls"
	PhoneNumbers   Category = "phone_numbers"
	AccountNumbers Category = "account_numbers"
	IFSCCodes      Category = "ifsc_codes"
	BankNames      Category = "bank_names"
	CryptoWallets  Category = "crypto_wallets"
	PersonNames    Category = "person_names"
	Entities       Category = "entities"
)

// Categories lists the known categories in report order.
func Categories() []Category {
	return []Category{
		UPIIDs,
		URLs,
		PhoneNumbers,
		AccountNumbers,
		IFSCCodes,
		BankNames,
		CryptoWallets,
		PersonNames,
		Entities,
	}
}

// Record maps a category to a set of values. Values are stored sorted and unique.
type Record map[Category][]string

// New returns a record holding every known category with no values.
func New() Record {
	rec := make(Record, len(Categories()))
	for _, c := range Categories() {
		rec[c] = []string{}
	}
	return rec
}

// Merge returns the category-wise union of existing and delta. Neither input is
// modified and the result shares no slices with them.
func Merge(existing, delta Record) Record {
	out := make(Record, len(existing)+len(delta))
	for c, values := range existing {
		out[c] = union(nil, values)
	}
	for c, values := range delta {
		out[c] = union(out[c], values)
	}
	return out
}

// Clone deep-copies the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for c, values := range r {
		out[c] = append([]string{}, values...)
	}
	return out
}

// Normalize trims, dedupes and sorts every category in place and returns r.
func (r Record) Normalize() Record {
	for c, values := range r {
		r[c] = union(nil, values)
	}
	return r
}

// Count returns the total number of values across all categories.
func (r Record) Count() int {
	total := 0
	for _, values := range r {
		total += len(values)
	}
	return total
}

// Add inserts values into a category, keeping set semantics.
func (r Record) Add(c Category, values ...string) {
	r[c] = union(r[c], values)
}

// Has reports whether value is present in category c.
func (r Record) Has(c Category, value string) bool {
	values := r[c]
	i := sort.SearchStrings(values, value)
	return i < len(values) && values[i] == value
}

func union(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
