package store

type User struct {
	ID           int32
	Email        string
	Nickname     string
	PasswordHash string
	CreatedTs    int64
	UpdatedTs    int64
}

type FindUser struct {
	ID    *int32
	Email *string
}

// DeleteUser cascades the user's conversations, messages and tasks.
type DeleteUser struct {
	ID int32
}
