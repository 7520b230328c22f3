package domain

// IdentifierKind classifies a login identifier.
type IdentifierKind int

const (
	KindInvalid IdentifierKind = iota
	KindEmail
	KindPhone
)

func (k IdentifierKind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	default:
		return "invalid"
	}
}
