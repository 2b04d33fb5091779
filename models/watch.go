package models

import "time"

// WatchRequest registers or polls a change-watcher for a single URL.
type WatchRequest struct {
	// URL is the target page to watch. Required.
	URL string `json:"url" binding:"required,url"`

	// Threshold is the maximum simhash Hamming distance still considered
	// "unchanged". Default: 3.
	Threshold int `json:"threshold,omitempty" binding:"omitempty,min=0,max=64"`
}

// WatchResponse reports whether the page's content fingerprint moved since
// the last check.
type WatchResponse struct {
	Success       bool      `json:"success"`
	URL           string    `json:"url"`
	FirstSeen     bool      `json:"first_seen"`
	Changed       bool      `json:"changed"`
	Distance      int       `json:"distance"`
	Threshold     int       `json:"threshold"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	Error         *ErrorDetail `json:"error,omitempty"`
}
