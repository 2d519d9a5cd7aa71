package database

const (
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
	SortTitleAsc    = "title_asc"
	SortTitleNat    = "title_nat"
)

const DefaultSortOrder = SortCreatedDesc

// IsValidSortOrder checks if a string is a valid sort order constant
func IsValidSortOrder(order string) bool {
	switch order {
	case SortCreatedDesc, SortCreatedAsc, SortTitleAsc, SortTitleNat:
		return true
	default:
		return false
	}
}
