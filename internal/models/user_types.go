package models

import "time"

// User roles. The role scopes which order transitions an actor may apply.
const (
	RoleStudent = "student"
	RoleVendor  = "vendor"
	RoleRider   = "rider"
)

// User is the model for the 'users' table. Authentication/session issuance
// lives outside the engine; the engine only needs identity, role and a
// contactable email for the payment provider.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Role      string    `json:"role" db:"role"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"fullName" db:"full_name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Restaurant is the model for the 'restaurants' table. Menu CRUD is out of
// scope; the engine only uses the owner link to scope vendor transitions.
type Restaurant struct {
	ID      int64  `json:"id" db:"id"`
	OwnerID int64  `json:"ownerId" db:"owner_id"`
	Name    string `json:"name" db:"name"`
}
