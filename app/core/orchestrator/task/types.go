package task

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Todo is one task row, always scoped to its owning user.
type Todo struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"` // ISO-8601 date, empty when unset
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	CompletedAt int64  `json:"completed_at,omitempty"`
}

// Filter narrows and orders List results. Zero values mean "no
// constraint"; Limit <= 0 lists everything.
type Filter struct {
	Status    string
	Category  string
	Priority  string
	Search    string
	SortBy    string // created, due_date, priority, description
	SortOrder string // asc, desc
	Limit     int
}

// Counts summarizes a user's tasks per status.
type Counts struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}
