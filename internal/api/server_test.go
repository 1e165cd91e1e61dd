package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-ddx-server/internal/audit"
	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
	"github.com/clinical-ddx-server/internal/service"
)

// fakeConfigManager provides a fixed configuration for handler tests
type fakeConfigManager struct {
	config *domain.Config
}

func (f *fakeConfigManager) GetConfig() *domain.Config             { return f.config }
func (f *fakeConfigManager) GetServerConfig() *domain.ServerConfig { return &f.config.Server }
func (f *fakeConfigManager) Validate() error                       { return nil }

// memoryAuditStore is an in-memory audit.Store for handler tests
type memoryAuditStore struct {
	mu      sync.Mutex
	records []*audit.Record
	saveErr error
}

func (m *memoryAuditStore) Save(_ context.Context, record *audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryAuditStore) Get(_ context.Context, id string) (*audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memoryAuditStore) List(_ context.Context, limit, offset int) ([]*audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], nil
}

func (m *memoryAuditStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memoryAuditStore) Close() error { return nil }

func testServerKnowledgeBase() *knowledge.Base {
	return &knowledge.Base{
		WeightedDiseases: map[string][]string{
			"GERD":                    {"chest pain", "burning", "heartburn", "regurgitation"},
			"Acute Coronary Syndrome": {"chest pain", "diaphoresis", "radiation to arm"},
		},
		OverlapDiseases: map[string][]string{
			"Esophagitis": {"chest pain", "burning", "painful swallowing", "heartburn", "regurgitation"},
		},
		GIDiseaseTerms:      []string{"gerd", "esophag", "gastritis"},
		CardiacDiseaseTerms: []string{"coronary", "cardiac", "myocardial"},
		CardiacNegations:    []string{"diaphoresis", "radiation"},
		GINegations:         []string{"heartburn", "regurgitation"},
		DangerPriors: map[string]float64{
			"Acute Coronary Syndrome": 9.5,
			"GERD":                    2.0,
			"_default":                4.0,
		},
		EvidenceKeywords: map[string][]string{
			"diagnostic_criteria": {"diagnosis requires", "diagnostic criteria"},
			"typical_symptoms":    {"typically presents", "commonly presents"},
			"exclusion_features":  {"rules out", "argues against"},
			"management":          {"treatment", "management"},
		},
	}
}

func newTestServer(t *testing.T, store audit.Store) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &domain.Config{
		Server: domain.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logging: domain.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}

	pipeline := service.NewPipeline(
		testServerKnowledgeBase(), domain.DefaultScoringConfig(), nil, logger)

	return NewServer(&fakeConfigManager{config: cfg}, pipeline, store, logger)
}

func performRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func diagnoseRequestBody() *domain.DiagnoseRequest {
	return &domain.DiagnoseRequest{
		Symptoms: []domain.CanonicalSymptom{
			{Base: "chest pain", Quality: "burning"},
			{Base: "heartburn"},
		},
		Patient: domain.PatientData{Age: intPtr(52), Sex: "male"},
	}
}

func intPtr(v int) *int { return &v }

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &memoryAuditStore{})

	rec := performRequest(s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleDiagnose_Success(t *testing.T) {
	store := &memoryAuditStore{}
	s := newTestServer(t, store)

	rec := performRequest(s, http.MethodPost, "/api/v1/diagnose", diagnoseRequestBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result domain.DiagnoseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, domain.StateValidated, result.State)
	assert.NotEmpty(t, result.Diagnoses)

	// Result was audited
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, result.RequestID, store.records[0].RequestID)
}

func TestHandleDiagnose_PreservesCallerRequestID(t *testing.T) {
	s := newTestServer(t, &memoryAuditStore{})

	body := diagnoseRequestBody()
	body.RequestID = "caller-supplied-id"
	rec := performRequest(s, http.MethodPost, "/api/v1/diagnose", body)

	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.DiagnoseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "caller-supplied-id", result.RequestID)
}

func TestHandleDiagnose_MalformedBody(t *testing.T) {
	s := newTestServer(t, &memoryAuditStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose",
		bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var pipelineErr domain.PipelineError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pipelineErr))
	assert.Equal(t, domain.ErrInvalidInput, pipelineErr.Code)
}

func TestHandleDiagnose_AuditFailureDoesNotFailRequest(t *testing.T) {
	store := &memoryAuditStore{saveErr: errors.New("disk full")}
	s := newTestServer(t, store)

	rec := performRequest(s, http.MethodPost, "/api/v1/diagnose", diagnoseRequestBody())

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetAuditRecord(t *testing.T) {
	store := &memoryAuditStore{}
	s := newTestServer(t, store)

	// Seed a record through the diagnose endpoint
	rec := performRequest(s, http.MethodPost, "/api/v1/diagnose", diagnoseRequestBody())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.records, 1)

	rec = performRequest(s, http.MethodGet, "/api/v1/audit/"+store.records[0].ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var record audit.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, store.records[0].ID, record.ID)
}

func TestHandleGetAuditRecord_NotFound(t *testing.T) {
	s := newTestServer(t, &memoryAuditStore{})

	rec := performRequest(s, http.MethodGet, "/api/v1/audit/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListAuditRecords(t *testing.T) {
	store := &memoryAuditStore{}
	s := newTestServer(t, store)

	for i := 0; i < 3; i++ {
		body := diagnoseRequestBody()
		body.RequestID = fmt.Sprintf("req-%d", i)
		rec := performRequest(s, http.MethodPost, "/api/v1/diagnose", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := performRequest(s, http.MethodGet, "/api/v1/audit?limit=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []*audit.Record `json:"records"`
		Total   int             `json:"total"`
		Limit   int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Limit)
}

func TestRequestIDMiddleware_GeneratesWhenAbsent(t *testing.T) {
	s := newTestServer(t, &memoryAuditStore{})

	rec := performRequest(s, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_PreservesHeader(t *testing.T) {
	s := newTestServer(t, &memoryAuditStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}
