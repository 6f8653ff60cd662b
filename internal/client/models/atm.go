package models

import "time"

type ATMStatus struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ATM is one managed device.
type ATM struct {
	ID                  int64     `json:"id"`
	UID                 string    `json:"atm_uid"`
	LocationDescription *string   `json:"location_description"`
	IPAddress           *string   `json:"ip_address"`
	StatusID            int64     `json:"status_id"`
	AddedByUserID       *int64    `json:"added_by_user_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Status              ATMStatus `json:"status"`
}

// ATMInput is the body of device create and update calls. Nil pointers are
// omitted so an update only touches what it names.
type ATMInput struct {
	UID                 *string `json:"atm_uid,omitempty"`
	LocationDescription *string `json:"location_description,omitempty"`
	IPAddress           *string `json:"ip_address,omitempty"`
	StatusID            *int64  `json:"status_id,omitempty"`
}
