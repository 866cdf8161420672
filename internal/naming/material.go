package naming

import (
	"regexp"
	"strconv"
)

// UnknownBaseName replaces a blank material base name.
const UnknownBaseName = "UNKNOWN"

// MaxNameLength is the mat_partname column width in characters.
const MaxNameLength = 255

// Outcome classifies a material name allocation.
type Outcome string

const (
	// OutcomeBare means no existing row matched and the base name is used as is.
	OutcomeBare Outcome = "bare"
	// OutcomeRenamed means the single bare row was renamed to "BASE 1" and the
	// new row gets "BASE 2".
	OutcomeRenamed Outcome = "renamed"
	// OutcomeNumbered means numbered rows existed and the next number is used.
	OutcomeNumbered Outcome = "numbered"
)

// NamedRow is the slice of a material row the allocator needs.
type NamedRow struct {
	ID       int64
	Partcode string
	Name     string
}

// Rename is a pending rename of an existing row.
type Rename struct {
	RowID int64
	From  string
	To    string
}

// MaterialNamePlan is the result of a material name allocation. When Rename
// is set it must be persisted in the same transaction that inserts the new row.
type MaterialNamePlan struct {
	Base    string
	Name    string
	Rename  *Rename
	Outcome Outcome
}

// MaterialBase normalizes a base name, substituting UnknownBaseName for blanks.
func MaterialBase(base string) string {
	if base = Normalize(base); base == "" {
		return UnknownBaseName
	}
	return base
}

// PlanMaterialName computes the name for a new material under one TEP code.
// rows are the TEP code's existing materials; the row whose partcode equals
// excludePartcode is ignored. Only names equal to the base, optionally
// followed by a space and digits, count as collisions (case-insensitive).
func PlanMaterialName(base string, rows []NamedRow, excludePartcode string) MaterialNamePlan {
	base = MaterialBase(base)
	pattern := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(base) + `( (\d+))?$`)

	plan := MaterialNamePlan{Base: base, Name: base, Outcome: OutcomeBare}

	var (
		matched   bool
		suffixed  bool
		maxSuffix int64
		bare      *NamedRow
	)
	for i := range rows {
		row := &rows[i]
		if excludePartcode != "" && row.Partcode == excludePartcode {
			continue
		}
		m := pattern.FindStringSubmatch(row.Name)
		if m == nil {
			continue
		}
		matched = true
		if m[2] == "" {
			if bare == nil || row.ID < bare.ID {
				bare = row
			}
			continue
		}
		suffixed = true
		if n, err := strconv.ParseInt(m[2], 10, 64); err == nil && n > maxSuffix {
			maxSuffix = n
		}
	}

	switch {
	case !matched:
		return plan
	case !suffixed:
		plan.Rename = &Rename{RowID: bare.ID, From: bare.Name, To: base + " 1"}
		plan.Name = base + " 2"
		plan.Outcome = OutcomeRenamed
	default:
		plan.Name = base + " " + strconv.FormatInt(maxSuffix+1, 10)
		plan.Outcome = OutcomeNumbered
	}
	return plan
}
