package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"backend/internal/models"
	"backend/internal/modelstore"
	"backend/internal/repository"

	"go.uber.org/zap"
)

var (
	// ErrEmptyText is returned when the submitted email text is empty or
	// whitespace only. A client error.
	ErrEmptyText = errors.New("email text is required")
	// ErrModelNotReady is returned when no model artifact is loaded. This
	// signals a broken deployment, not a bad request.
	ErrModelNotReady = errors.New("ml model is not ready")
	// ErrInference wraps embedder/classifier failures. The underlying cause
	// is logged but never returned to the caller.
	ErrInference = errors.New("inference failed")
	// ErrPersistence is returned when the classification record could not be
	// saved. No result is returned in that case: feedback depends on the
	// record existing.
	ErrPersistence = errors.New("failed to save classification")
)

// PredictionResult is what the prediction endpoint returns to the caller.
type PredictionResult struct {
	Label            string
	Confidence       float64
	EmailText        string
	ClassificationID int64
}

// ArtifactProvider is the readiness/get contract the prediction service
// needs from the model store.
type ArtifactProvider interface {
	Ready() bool
	Artifact() (*modelstore.Artifact, error)
}

// SpamNotifier receives high-confidence spam detections. Best effort only.
type SpamNotifier interface {
	SpamDetected(text string, confidence float64, classificationID int64)
}

type PredictionService interface {
	Predict(ctx context.Context, emailText string, userID *int64) (*PredictionResult, error)
}

type predictionService struct {
	store    ArtifactProvider
	repo     repository.ClassificationRepository
	notifier SpamNotifier // nil when alerts are disabled
	logger   *zap.Logger
}

func NewPredictionService(store ArtifactProvider, repo repository.ClassificationRepository, notifier SpamNotifier, logger *zap.Logger) PredictionService {
	return &predictionService{
		store:    store,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Predict embeds the email text, classifies the embedding, persists one
// classification record, and returns the labeled result. Failures before the
// record write leave no partial state behind.
func (s *predictionService) Predict(ctx context.Context, emailText string, userID *int64) (*PredictionResult, error) {
	if strings.TrimSpace(emailText) == "" {
		return nil, ErrEmptyText
	}

	artifact, err := s.store.Artifact()
	if err != nil {
		s.logger.Error("ML model is not loaded. This indicates a startup failure.", zap.Error(err))
		return nil, ErrModelNotReady
	}

	vec, err := artifact.Embedder.Embed(emailText)
	if err != nil {
		s.logger.Error("Failed to embed email text", zap.Error(err))
		return nil, fmt.Errorf("%w: embedding: %v", ErrInference, err)
	}

	predicted, probs, err := artifact.Classifier.Classify(vec)
	if err != nil {
		s.logger.Error("Failed to classify embedding", zap.Error(err))
		return nil, fmt.Errorf("%w: classification: %v", ErrInference, err)
	}

	label, confidence, assumed := deriveConfidence(predicted, probs)
	if assumed {
		s.logger.Warn("Model labels are numeric. Assuming 1=spam and 0=ham.",
			zap.String("predicted", predicted))
	}

	record := &models.Classification{
		UserID:     userID,
		EmailText:  emailText,
		Label:      label,
		Confidence: &confidence,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to save classification record", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	rounded := round4(confidence)
	s.logger.Info("Email classified",
		zap.Int64("classification_id", record.ID),
		zap.String("label", label),
		zap.Float64("confidence", rounded))

	if s.notifier != nil && label == models.LabelSpam {
		go s.notifier.SpamDetected(emailText, rounded, record.ID)
	}

	return &PredictionResult{
		Label:            label,
		Confidence:       rounded,
		EmailText:        emailText,
		ClassificationID: record.ID,
	}, nil
}

// deriveConfidence resolves the probability mass behind the predicted label.
// When the classifier reports the canonical spam/ham labels they are looked
// up by name. A model trained with bare numeric labels falls back to the
// convention 1=spam, 0=ham; the returned bool flags that assumption so the
// caller can log it.
func deriveConfidence(predicted string, probs map[string]float64) (string, float64, bool) {
	_, hasSpam := probs[models.LabelSpam]
	_, hasHam := probs[models.LabelHam]
	if hasSpam && hasHam {
		return predicted, probs[predicted], false
	}

	if predicted == "1" {
		return models.LabelSpam, probs["1"], true
	}
	return models.LabelHam, probs["0"], true
}

// round4 rounds to 4 decimal places, matching the API contract.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
