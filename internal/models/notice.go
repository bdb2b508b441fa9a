package models

import "time"

type NoticeAuthor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Notice is an announcement. Notices are immutable once created.
type Notice struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"createdAt"`
	CreatedBy NoticeAuthor `json:"createdBy"`
}

// NoticeRequest is the body of a notice creation call.
type NoticeRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}
