package naming

import "strconv"

// PartEntry is one (code, name) pair from a customer's part list.
type PartEntry struct {
	Code string
	Name string
}

// UniquePartName resolves the name a part code should carry within a
// customer's part list. When code is already registered, existing is true and
// name is the stored name (or the proposed name when the stored one is blank).
// Otherwise name is the proposed name, suffixed with the lowest free " N" when
// the proposed name collides case-insensitively with any existing name.
func UniquePartName(parts []PartEntry, code, proposed string) (existing bool, name string) {
	code = Normalize(code)
	proposed = Normalize(proposed)
	if proposed == "" {
		proposed = code
	}

	for _, part := range parts {
		if Normalize(part.Code) != code {
			continue
		}
		if stored := Normalize(part.Name); stored != "" {
			return true, stored
		}
		return true, proposed
	}

	taken := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		taken[NameKey(part.Name)] = struct{}{}
	}
	if _, ok := taken[NameKey(proposed)]; !ok {
		return false, proposed
	}
	for n := 1; ; n++ {
		candidate := proposed + " " + strconv.Itoa(n)
		if _, ok := taken[NameKey(candidate)]; !ok {
			return false, candidate
		}
	}
}

// EnsurePartEntry applies UniquePartName to parts and returns the resulting
// list. changed reports whether a new entry was appended.
func EnsurePartEntry(parts []PartEntry, code, proposed string) (updated []PartEntry, changed bool, usedName string) {
	existing, name := UniquePartName(parts, code, proposed)
	if existing {
		return parts, false, name
	}
	updated = make([]PartEntry, 0, len(parts)+1)
	updated = append(updated, parts...)
	updated = append(updated, PartEntry{Code: Normalize(code), Name: name})
	return updated, true, name
}
