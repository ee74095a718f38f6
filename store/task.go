package store

// Task is the unit of work the chat tools operate on. Tasks are shared with
// the REST API; every access is scoped by creator at the query level.
type Task struct {
	ID          int32
	CreatorID   int32
	Title       string
	Description string
	Completed   bool
	DueTs       *int64
	CreatedTs   int64
	UpdatedTs   int64
}

type FindTask struct {
	ID        *int32
	CreatorID *int32
	Completed *bool

	Limit  *int
	Offset *int
}

// UpdateTask is a partial update scoped to the creator. DueTs uses a double
// pointer so that "clear the due date" and "leave it alone" stay distinct.
type UpdateTask struct {
	ID        int32
	CreatorID int32

	Title       *string
	Description *string
	Completed   *bool
	DueTs       **int64
	UpdatedTs   *int64
}

type DeleteTask struct {
	ID        int32
	CreatorID int32
}
