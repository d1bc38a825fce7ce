package domain

import "time"

// Account is one end user's wallet. Balance is a whole number of credits and
// never goes negative; every mutation happens through a guarded store write,
// never by read-modify-write in process.
type Account struct {
	ID        string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
