package imports

import "strings"

// Accepted header spellings per field; the first non-empty column wins.
var (
	colMatPartcode = []string{"mat_partcode", "material_part_code"}
	colMatPartname = []string{"mat_partname", "material_name"}
	colMatMaker    = []string{"mat_maker", "maker"}
	colUnit        = []string{"unit"}
	colCustomer    = []string{"customer_name", "customer", "CUSTOMER"}
	colPartCode    = []string{"part_code", "Partcode", "part_number"}
	colPartName    = []string{"part_name", "Partname"}
	colTEPCode     = []string{"tep_code", "TEP"}
	colDimQty      = []string{"dim_qty", "qty"}
	colLossPercent = []string{"loss_percent", "loss"}
)

type columns map[string]int

func indexColumns(header []string) columns {
	idx := make(columns, len(header))
	for i, name := range header {
		if _, dup := idx[name]; !dup && name != "" {
			idx[name] = i
		}
	}
	return idx
}

// value returns the first non-blank cell among aliases.
func (c columns) value(row []string, aliases []string) string {
	for _, alias := range aliases {
		i, ok := c[alias]
		if !ok || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			return v
		}
	}
	return ""
}

func (c columns) hasAny(aliases []string) bool {
	for _, alias := range aliases {
		if _, ok := c[alias]; ok {
			return true
		}
	}
	return false
}
