package objects

type ListSummary struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}
