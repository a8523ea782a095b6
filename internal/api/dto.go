package api

// GoalHierarchy is the response payload for one goal's children. Keys
// are hierarchy keys; child entries are vault-relative paths.
type GoalHierarchy struct {
	Key      string   `json:"key" example:"health.md" validate:"required"`
	Projects []string `json:"projects" validate:"required"`
	Tasks    []string `json:"tasks" validate:"required"`
}

// ProjectHierarchy is the response payload for one project's children.
type ProjectHierarchy struct {
	Key   string   `json:"key" example:"run-a-marathon.md" validate:"required"`
	Tasks []string `json:"tasks" validate:"required"`
}

// KeyListResponse wraps a sorted list of hierarchy keys.
type KeyListResponse struct {
	Keys  []string `json:"keys" validate:"required"`
	Total int      `json:"total" example:"12" validate:"required"`
}

// FileTypeResponse reports the classification of one vault path.
type FileTypeResponse struct {
	Path    string `json:"path" example:"Goals/health.md" validate:"required"`
	Kind    string `json:"kind,omitempty" example:"goal"`
	Tracked bool   `json:"tracked" validate:"required"`
}

// EntityListResponse wraps paginated catalog listings.
type EntityListResponse struct {
	Entities []EntityItem `json:"entities" validate:"required"`
	Total    int          `json:"total" example:"42" validate:"required"`
}

// RescanResponse acknowledges a completed rescan.
type RescanResponse struct {
	Status string `json:"status" example:"completed" validate:"required"`
}

// StatsResponse reports entity counts by kind.
type StatsResponse struct {
	Counts map[string]int `json:"counts" validate:"required"`
}
