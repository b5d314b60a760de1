package models

import "time"

// ChatHistory is one prompt/response exchange with the assistant.
type ChatHistory struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"-" db:"company_id"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Response  string    `json:"response" db:"response"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
