package models

import "time"

// Plate is a row of the plates table.
// NOTE: Image is a pointer so a missing image serializes as null instead of "".
type Plate struct {
	ID          int64     `db:"id"          json:"id"`
	Title       string    `db:"title"       json:"title"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category"    json:"category"`
	Price       float64   `db:"price"       json:"price"`
	Image       *string   `db:"image"       json:"image"`
	UserID      int64     `db:"user_id"     json:"user_id"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

type Ingredient struct {
	ID      int64  `db:"id"       json:"id"`
	PlateID int64  `db:"plate_id" json:"plate_id"`
	Name    string `db:"name"     json:"name"`
	UserID  int64  `db:"user_id"  json:"user_id"`
}

// NewPlate holds the fields supplied when a plate is inserted.
type NewPlate struct {
	Title       string
	Description string
	Category    string
	Price       float64
	Image       *string
	UserID      int64
}

// PlateUpdate is the complete scalar field set written by an update.
// updated_at is always refreshed by the store.
type PlateUpdate struct {
	Title       string
	Description string
	Category    string
	Price       float64
	Image       *string
}

// PlateFilter scopes a plate listing to one owner.
// A nil Ingredients slice means no ingredient filter.
type PlateFilter struct {
	UserID      int64
	Title       string
	Ingredients []string
}

// PlateView is the response shape: the plate fields merged with its ingredients.
type PlateView struct {
	Plate
	Ingredients []Ingredient `json:"ingredients"`
}
