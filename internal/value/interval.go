package value

// Ivl is the (months, days, microseconds) interval representation from
// spec §3: no cross-unit normalization is performed on construction.
type Ivl struct {
	Months int32
	Days   int32
	Micros int64
}

// Equal compares the triple component-wise; intervals are only equal if
// every component matches exactly (no calendar normalization).
func (a Ivl) Equal(b Ivl) bool {
	return a.Months == b.Months && a.Days == b.Days && a.Micros == b.Micros
}
