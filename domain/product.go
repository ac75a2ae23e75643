package domain

import "time"

type Category struct {
	ID          int64
	Name        string
	Description string
}

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       Money
	Stock       int32
	CategoryID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
