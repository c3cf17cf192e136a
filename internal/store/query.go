package store

// SortKey enumerates the legal sort columns for list queries. Keys map to
// fixed column names inside the store; caller input never reaches the SQL
// text directly.
type SortKey string

const (
	SortByName    SortKey = "name"
	SortByQty     SortKey = "qty"
	SortByExpiry  SortKey = "expiry"
	SortByStatus  SortKey = "status"
	SortByID      SortKey = "id"
	SortByCreated SortKey = "created"
)

// ListOptions narrows and orders list queries.
type ListOptions struct {
	Search     string
	Sort       SortKey
	Descending bool
}

var itemSortColumns = map[SortKey]string{
	SortByName:   "name",
	SortByQty:    "qty_available",
	SortByExpiry: "expiry_date",
	SortByStatus: "is_active",
}

var requestSortColumns = map[SortKey]string{
	SortByID:      "r.id",
	SortByStatus:  "r.status",
	SortByCreated: "r.created_at",
}

// orderClause resolves the sort key against the allowed columns for a query,
// falling back to def when the key is unknown.
func (o ListOptions) orderClause(allowed map[SortKey]string, def string) string {
	col, ok := allowed[o.Sort]
	if !ok {
		col = def
	}
	dir := "ASC"
	if o.Descending {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir
}
