package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"backend/internal/models"
	"backend/internal/modelstore"

	"go.uber.org/zap"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) { return s.vec, s.err }
func (s *stubEmbedder) Dim() int                             { return len(s.vec) }
func (s *stubEmbedder) Close() error                         { return nil }

type stubClassifier struct {
	label  string
	probs  map[string]float64
	err    error
	labels []string
}

func (s *stubClassifier) Classify(vec []float32) (string, map[string]float64, error) {
	return s.label, s.probs, s.err
}

func (s *stubClassifier) Labels() []string { return s.labels }

type stubProvider struct {
	artifact *modelstore.Artifact
}

func (s *stubProvider) Ready() bool { return s.artifact != nil }

func (s *stubProvider) Artifact() (*modelstore.Artifact, error) {
	if s.artifact == nil {
		return nil, modelstore.ErrNotReady
	}
	return s.artifact, nil
}

type memClassificationRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []*models.Classification
	failing bool
}

func (m *memClassificationRepo) Create(ctx context.Context, c *models.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("connection refused")
	}
	m.nextID++
	c.ID = m.nextID
	stored := *c
	m.records = append(m.records, &stored)
	return nil
}

func (m *memClassificationRepo) GetByID(ctx context.Context, id int64) (*models.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.records {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memClassificationRepo) List(ctx context.Context, page, pageSize int) ([]*models.Classification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, len(m.records), nil
}

func (m *memClassificationRepo) Stats(ctx context.Context) (*models.ClassificationStats, error) {
	return &models.ClassificationStats{}, nil
}

func (m *memClassificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func readyProvider(cls *stubClassifier) *stubProvider {
	return &stubProvider{artifact: &modelstore.Artifact{
		Embedder:   &stubEmbedder{vec: []float32{0.1, 0.2}},
		Classifier: cls,
	}}
}

func spamClassifier(spamProb float64) *stubClassifier {
	label := models.LabelSpam
	if spamProb < 0.5 {
		label = models.LabelHam
	}
	return &stubClassifier{
		label:  label,
		probs:  map[string]float64{models.LabelSpam: spamProb, models.LabelHam: 1 - spamProb},
		labels: []string{models.LabelHam, models.LabelSpam},
	}
}

func TestPredictSuccess(t *testing.T) {
	repo := &memClassificationRepo{}
	svc := NewPredictionService(readyProvider(spamClassifier(0.93)), repo, nil, zap.NewNop())

	res, err := svc.Predict(context.Background(), "Buy cheap pills now!!!", nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if res.Label != models.LabelSpam {
		t.Errorf("label = %s, want spam", res.Label)
	}
	if res.Confidence != 0.93 {
		t.Errorf("confidence = %v, want 0.93", res.Confidence)
	}
	if res.EmailText != "Buy cheap pills now!!!" {
		t.Errorf("email text not echoed: %s", res.EmailText)
	}
	if res.ClassificationID == 0 {
		t.Error("classification id must be set")
	}

	if repo.count() != 1 {
		t.Fatalf("expected exactly one record, got %d", repo.count())
	}
	rec := repo.records[0]
	if rec.Label != models.LabelSpam || rec.Confidence == nil || *rec.Confidence != 0.93 {
		t.Errorf("stored record does not match result: %+v", rec)
	}
	if rec.UserID != nil {
		t.Errorf("anonymous prediction must store no user: %+v", rec.UserID)
	}
}

func TestPredictStoresRequester(t *testing.T) {
	repo := &memClassificationRepo{}
	svc := NewPredictionService(readyProvider(spamClassifier(0.2)), repo, nil, zap.NewNop())

	userID := int64(7)
	res, err := svc.Predict(context.Background(), "see you at lunch", &userID)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Label != models.LabelHam {
		t.Errorf("label = %s, want ham", res.Label)
	}
	rec := repo.records[0]
	if rec.UserID == nil || *rec.UserID != 7 {
		t.Errorf("expected user 7 on record, got %+v", rec.UserID)
	}
}

func TestPredictEmptyText(t *testing.T) {
	repo := &memClassificationRepo{}
	svc := NewPredictionService(readyProvider(spamClassifier(0.9)), repo, nil, zap.NewNop())

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := svc.Predict(context.Background(), text, nil); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Predict(%q): expected ErrEmptyText, got %v", text, err)
		}
	}
	if repo.count() != 0 {
		t.Errorf("no records must be created for invalid input, got %d", repo.count())
	}
}

func TestPredictModelNotReady(t *testing.T) {
	repo := &memClassificationRepo{}
	svc := NewPredictionService(&stubProvider{}, repo, nil, zap.NewNop())

	if _, err := svc.Predict(context.Background(), "hello", nil); !errors.Is(err, ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}
	if repo.count() != 0 {
		t.Errorf("no records must be created when model is unavailable, got %d", repo.count())
	}
}

func TestPredictInferenceFailures(t *testing.T) {
	repo := &memClassificationRepo{}

	embedFail := &stubProvider{artifact: &modelstore.Artifact{
		Embedder:   &stubEmbedder{err: errors.New("session crashed")},
		Classifier: spamClassifier(0.9),
	}}
	svc := NewPredictionService(embedFail, repo, nil, zap.NewNop())
	if _, err := svc.Predict(context.Background(), "hello", nil); !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference from embedder, got %v", err)
	}

	classifyFail := readyProvider(&stubClassifier{err: errors.New("dimension mismatch")})
	svc = NewPredictionService(classifyFail, repo, nil, zap.NewNop())
	if _, err := svc.Predict(context.Background(), "hello", nil); !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference from classifier, got %v", err)
	}

	if repo.count() != 0 {
		t.Errorf("inference failures must not write records, got %d", repo.count())
	}
}

func TestPredictPersistenceFailure(t *testing.T) {
	repo := &memClassificationRepo{failing: true}
	svc := NewPredictionService(readyProvider(spamClassifier(0.9)), repo, nil, zap.NewNop())

	res, err := svc.Predict(context.Background(), "hello", nil)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if res != nil {
		t.Error("no result must be returned when the record cannot be saved")
	}
}

func TestPredictConfidenceRounding(t *testing.T) {
	repo := &memClassificationRepo{}
	svc := NewPredictionService(readyProvider(spamClassifier(0.87654321)), repo, nil, zap.NewNop())

	res, err := svc.Predict(context.Background(), "win a free prize", nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Confidence != 0.8765 {
		t.Errorf("confidence = %v, want 0.8765", res.Confidence)
	}
}

func TestPredictNumericLabelFallback(t *testing.T) {
	numeric := &stubClassifier{
		label:  "1",
		probs:  map[string]float64{"0": 0.25, "1": 0.75},
		labels: []string{"0", "1"},
	}
	repo := &memClassificationRepo{}
	svc := NewPredictionService(readyProvider(numeric), repo, nil, zap.NewNop())

	res, err := svc.Predict(context.Background(), "click here", nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Label != models.LabelSpam {
		t.Errorf("label = %s, want spam via numeric fallback", res.Label)
	}
	if res.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", res.Confidence)
	}
	if repo.records[0].Label != models.LabelSpam {
		t.Errorf("stored label = %s, want spam", repo.records[0].Label)
	}
}

func TestPredictConcurrent(t *testing.T) {
	repo := &memClassificationRepo{}
	svc := NewPredictionService(readyProvider(spamClassifier(0.9)), repo, nil, zap.NewNop())

	texts := []string{"first message", "second message"}
	ids := make([]int64, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			res, err := svc.Predict(context.Background(), text, nil)
			if err != nil {
				t.Errorf("Predict(%q): %v", text, err)
				return
			}
			ids[i] = res.ClassificationID
		}(i, text)
	}
	wg.Wait()

	if repo.count() != 2 {
		t.Fatalf("expected 2 records, got %d", repo.count())
	}
	if ids[0] == ids[1] {
		t.Errorf("concurrent predictions must get distinct ids, both got %d", ids[0])
	}
}

func TestDeriveConfidence(t *testing.T) {
	tests := []struct {
		name      string
		predicted string
		probs     map[string]float64
		wantLabel string
		wantConf  float64
		wantFlag  bool
	}{
		{"named spam", "spam", map[string]float64{"spam": 0.9, "ham": 0.1}, "spam", 0.9, false},
		{"named ham", "ham", map[string]float64{"spam": 0.3, "ham": 0.7}, "ham", 0.7, false},
		{"numeric spam", "1", map[string]float64{"0": 0.2, "1": 0.8}, "spam", 0.8, true},
		{"numeric ham", "0", map[string]float64{"0": 0.6, "1": 0.4}, "ham", 0.6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, conf, flag := deriveConfidence(tt.predicted, tt.probs)
			if label != tt.wantLabel || conf != tt.wantConf || flag != tt.wantFlag {
				t.Errorf("got (%s, %v, %t), want (%s, %v, %t)",
					label, conf, flag, tt.wantLabel, tt.wantConf, tt.wantFlag)
			}
		})
	}
}
