package entity

import "time"

// NotificationTypeCriteriaMatch is the record type written when a criteria
// matches a newly ingested item.
const NotificationTypeCriteriaMatch = "criteria_match"

// NotificationRecord is one persisted in-app notification for a user.
// SentAt is nil until a push delivery for this record succeeds; records past
// the daily cap or inside quiet hours stay persisted with SentAt nil.
type NotificationRecord struct {
	ID        int64
	UserID    int64
	Type      string
	Title     string
	Body      string
	Data      NotificationData
	CreatedAt time.Time
	SentAt    *time.Time
}

// NotificationData is the structured payload stored alongside a record.
type NotificationData struct {
	MangaID     int64    `json:"mangaId"`
	URL         string   `json:"url"`
	CriteriaIDs []int64  `json:"criteriaIds,omitempty"`
	Criteria    []string `json:"criteria,omitempty"`
}

// NotificationPayload is the wire schema handed to the push dispatcher.
type NotificationPayload struct {
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	URL             string   `json:"url"`
	PreviewImageURL string   `json:"previewImageURL"`
	Artists         []string `json:"artists,omitempty"`
	MangaID         int64    `json:"mangaId"`
	Icon            string   `json:"icon"`
	Tag             string   `json:"tag"`
	Badge           string   `json:"badge"`
}
