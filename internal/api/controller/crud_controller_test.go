package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
	"github.com/gin-gonic/gin"
)

type mockCollectionService struct {
	items      []model.Rule
	allErr     error
	replaceErr error
	replaced   []model.Rule
}

func (m *mockCollectionService) All() ([]model.Rule, error) {
	return m.items, m.allErr
}

func (m *mockCollectionService) ReplaceAll(items []model.Rule) ([]model.Rule, error) {
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	m.replaced = items
	return items, nil
}

type rejectNamed string

func (r rejectNamed) Validate(rule model.Rule) error {
	if rule.Name == string(r) {
		return errors.New("rejected " + rule.Name)
	}
	return nil
}

func newCollectionRouter(cc *CollectionController[model.Rule]) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cc.Log = logger.WithComponent("test")
	cc.Name = "rules"
	r := gin.New()
	r.GET("/rules", cc.GetAll)
	r.POST("/rules", cc.ReplaceAll)
	return r
}

func TestCollectionController_GetAll(t *testing.T) {
	svc := &mockCollectionService{items: []model.Rule{{ID: "1", Name: "indent", Active: true}}}
	r := newCollectionRouter(&CollectionController[model.Rule]{Service: svc})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rules", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp []model.Rule
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp) != 1 || resp[0].Name != "indent" {
		t.Errorf("unexpected response body: %v", resp)
	}
}

func TestCollectionController_GetAll_Error(t *testing.T) {
	svc := &mockCollectionService{allErr: errors.New("disk gone")}
	r := newCollectionRouter(&CollectionController[model.Rule]{Service: svc})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rules", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk gone") {
		t.Errorf("internal error leaked into body: %s", w.Body.String())
	}
}

func TestCollectionController_ReplaceAll(t *testing.T) {
	svc := &mockCollectionService{}
	r := newCollectionRouter(&CollectionController[model.Rule]{Service: svc, Validator: rejectNamed("bad")})

	body := `[{"id":"1","name":"indent","active":false}]`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.replaced) != 1 || svc.replaced[0].Active {
		t.Errorf("unexpected replaced items: %v", svc.replaced)
	}
}

func TestCollectionController_ReplaceAll_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		svc    *mockCollectionService
		status int
	}{
		{"malformed", `{"id":`, &mockCollectionService{}, http.StatusBadRequest},
		{"not an array", `{"id":"1"}`, &mockCollectionService{}, http.StatusBadRequest},
		{"validator", `[{"id":"1","name":"bad"}]`, &mockCollectionService{}, http.StatusBadRequest},
		{"not found", `[]`, &mockCollectionService{replaceErr: apperror.NotFound("rules", "x")}, http.StatusNotFound},
		{"invalid", `[]`, &mockCollectionService{replaceErr: apperror.ValidationFailed("rules", "empty")}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCollectionRouter(&CollectionController[model.Rule]{Service: tt.svc, Validator: rejectNamed("bad")})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.svc.replaced != nil {
				t.Errorf("service should not have been called on rejection")
			}
		})
	}
}
