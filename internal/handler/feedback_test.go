package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backend/internal/models"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type stubFeedbackService struct {
	err error

	gotClassificationID int64
	gotUserID           int64
	gotIsCorrect        bool
	gotComment          string
	calls               int
}

func (s *stubFeedbackService) Submit(ctx context.Context, classificationID, userID int64, isCorrect bool, comment string) (*models.Feedback, error) {
	s.calls++
	s.gotClassificationID = classificationID
	s.gotUserID = userID
	s.gotIsCorrect = isCorrect
	s.gotComment = comment
	if s.err != nil {
		return nil, s.err
	}
	return &models.Feedback{ID: 1, ClassificationID: classificationID, IsCorrect: isCorrect}, nil
}

func quietLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func feedbackRouter(svc service.FeedbackService, userID *int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewFeedbackHandler(svc, quietLogrus())

	r := gin.New()
	r.POST("/api/classifications/:id/feedback", func(c *gin.Context) {
		if userID != nil {
			c.Set("user_id", *userID)
		}
		c.Next()
	}, h.Submit)
	return r
}

func postFeedback(t *testing.T, r *gin.Engine, path, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFeedbackSubmitSuccess(t *testing.T) {
	svc := &stubFeedbackService{}
	uid := int64(3)
	r := feedbackRouter(svc, &uid)

	w := postFeedback(t, r, "/api/classifications/42/feedback",
		`{"is_correct": true, "user_comment": "nailed it"}`, "application/json")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "success") {
		t.Errorf("expected success status: %s", w.Body.String())
	}
	if svc.gotClassificationID != 42 || svc.gotUserID != 3 || !svc.gotIsCorrect {
		t.Errorf("service got (%d, %d, %t)", svc.gotClassificationID, svc.gotUserID, svc.gotIsCorrect)
	}
	if svc.gotComment != "nailed it" {
		t.Errorf("comment = %q", svc.gotComment)
	}
}

func TestFeedbackRejectsWrongContentType(t *testing.T) {
	svc := &stubFeedbackService{}
	uid := int64(3)
	r := feedbackRouter(svc, &uid)

	w := postFeedback(t, r, "/api/classifications/1/feedback", `is_correct=true`, "application/x-www-form-urlencoded")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if svc.calls != 0 {
		t.Error("service must not be called for wrong content type")
	}
}

func TestFeedbackValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"invalid id", "/api/classifications/abc/feedback", `{"is_correct": true}`},
		{"invalid json", "/api/classifications/1/feedback", `{broken`},
		{"missing is_correct", "/api/classifications/1/feedback", `{"user_comment": "hi"}`},
		{"wrong is_correct type", "/api/classifications/1/feedback", `{"is_correct": "yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFeedbackService{}
			uid := int64(3)
			r := feedbackRouter(svc, &uid)

			w := postFeedback(t, r, tt.path, tt.body, "application/json")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", w.Code, w.Body.String())
			}
			if svc.calls != 0 {
				t.Error("service must not be called before validation passes")
			}
		})
	}
}

func TestFeedbackNotFound(t *testing.T) {
	svc := &stubFeedbackService{err: service.ErrClassificationNotFound}
	uid := int64(3)
	r := feedbackRouter(svc, &uid)

	w := postFeedback(t, r, "/api/classifications/99/feedback", `{"is_correct": false}`, "application/json")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestFeedbackConflict(t *testing.T) {
	svc := &stubFeedbackService{err: service.ErrFeedbackConflict}
	uid := int64(3)
	r := feedbackRouter(svc, &uid)

	w := postFeedback(t, r, "/api/classifications/7/feedback", `{"is_correct": true}`, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already submitted") {
		t.Errorf("expected duplicate message: %s", w.Body.String())
	}
}

func TestFeedbackRequiresIdentity(t *testing.T) {
	svc := &stubFeedbackService{}
	r := feedbackRouter(svc, nil)

	w := postFeedback(t, r, "/api/classifications/1/feedback", `{"is_correct": true}`, "application/json")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
