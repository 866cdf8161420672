package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Customer{},
		&CustomerPart{},
		&TEPCode{},
		&Material{},
		&MasterMaterial{},
	}
}
