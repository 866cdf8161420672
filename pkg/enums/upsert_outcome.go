package enums

// UpsertOutcome describes what a master material upsert did to storage.
type UpsertOutcome string

const (
	UpsertOutcomeInserted  UpsertOutcome = "inserted"
	UpsertOutcomeUpdated   UpsertOutcome = "updated"
	UpsertOutcomeUnchanged UpsertOutcome = "unchanged"
)

// String implements fmt.Stringer.
func (o UpsertOutcome) String() string {
	return string(o)
}
