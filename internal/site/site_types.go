package site

// OpKind is the kind of a ledger mutation.
type OpKind string

const (
	OpAdd    OpKind = "Add"
	OpUpdate OpKind = "Update"
	OpDelete OpKind = "Delete"
)

// CarriesResources reports whether mutations of this kind need resource fields.
func (k OpKind) CarriesResources() bool {
	return k == OpAdd || k == OpUpdate
}

func (k OpKind) Valid() bool {
	switch k {
	case OpAdd, OpUpdate, OpDelete:
		return true
	}
	return false
}
