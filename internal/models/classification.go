package models

import "time"

// Canonical labels produced by the classifier.
const (
	LabelSpam = "spam"
	LabelHam  = "ham"
)

// Classification represents one prediction stored in the 'classifications' table.
// UserID is nullable: unauthenticated callers (e.g. the Postfix hook) are not
// linked to a user.
type Classification struct {
	ID               int64     `db:"id" json:"id"`
	UserID           *int64    `db:"user_id" json:"user_id,omitempty"`
	EmailText        string    `db:"email_text" json:"email_text"`
	Label            string    `db:"label" json:"label"`
	Confidence       *float64  `db:"confidence" json:"confidence,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	FeedbackProvided bool      `db:"feedback_provided" json:"feedback_provided"`
}

// Feedback represents a user's verdict on a classification, stored in the
// 'feedback' table. At most one row exists per classification.
type Feedback struct {
	ID               int64     `db:"id" json:"id"`
	ClassificationID int64     `db:"classification_id" json:"classification_id"`
	IsCorrect        bool      `db:"is_correct" json:"is_correct"`
	UserComment      *string   `db:"user_comment" json:"user_comment,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ClassificationStats summarizes the stored classification history.
type ClassificationStats struct {
	Total             int `json:"total"`
	Spam              int `json:"spam"`
	Ham               int `json:"ham"`
	WithFeedback      int `json:"with_feedback"`
	FeedbackCorrect   int `json:"feedback_correct"`
	FeedbackIncorrect int `json:"feedback_incorrect"`
}
