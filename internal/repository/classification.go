package repository

import (
	"context"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ClassificationRepository handles database operations for the
// 'classifications' table.
type ClassificationRepository interface {
	Create(ctx context.Context, c *models.Classification) error
	GetByID(ctx context.Context, id int64) (*models.Classification, error)
	List(ctx context.Context, page, pageSize int) ([]*models.Classification, int, error)
	Stats(ctx context.Context) (*models.ClassificationStats, error)
}

type classificationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewClassificationRepository creates a new classification repository.
func NewClassificationRepository(db *sqlx.DB, logger *zap.Logger) ClassificationRepository {
	return &classificationRepository{db: db, logger: logger}
}

// Create inserts a new classification and fills in the generated id,
// created_at and feedback_provided fields.
func (r *classificationRepository) Create(ctx context.Context, c *models.Classification) error {
	query := `
		INSERT INTO classifications (user_id, email_text, label, confidence)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, feedback_provided
	`
	return r.db.QueryRowxContext(ctx, query, c.UserID, c.EmailText, c.Label, c.Confidence).
		Scan(&c.ID, &c.CreatedAt, &c.FeedbackProvided)
}

func (r *classificationRepository) GetByID(ctx context.Context, id int64) (*models.Classification, error) {
	var c models.Classification
	query := `
		SELECT id, user_id, email_text, label, confidence, created_at, feedback_provided
		FROM classifications
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns one page of classifications, newest first, together with the
// total row count. Records from anonymous callers are included.
func (r *classificationRepository) List(ctx context.Context, page, pageSize int) ([]*models.Classification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classifications`); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, email_text, label, confidence, created_at, feedback_provided
		FROM classifications
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	classifications := []*models.Classification{}
	err := r.db.SelectContext(ctx, &classifications, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}

	return classifications, total, nil
}

// Stats returns aggregate counts over the classification history.
func (r *classificationRepository) Stats(ctx context.Context) (*models.ClassificationStats, error) {
	stats := &models.ClassificationStats{}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE label = 'spam') AS spam,
			COUNT(*) FILTER (WHERE label = 'ham') AS ham,
			COUNT(*) FILTER (WHERE feedback_provided) AS with_feedback
		FROM classifications
	`
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&stats.Total, &stats.Spam, &stats.Ham, &stats.WithFeedback); err != nil {
		return nil, err
	}

	query = `
		SELECT
			COUNT(*) FILTER (WHERE is_correct) AS correct,
			COUNT(*) FILTER (WHERE NOT is_correct) AS incorrect
		FROM feedback
	`
	row = r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&stats.FeedbackCorrect, &stats.FeedbackIncorrect); err != nil {
		return nil, err
	}

	return stats, nil
}
