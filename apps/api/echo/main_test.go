package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/deliberation/apps/api/echo"
	"github.com/trezcool/deliberation/core/grading"
	"github.com/trezcool/deliberation/services/period"
	"github.com/trezcool/deliberation/tests"
)

type httpResponse struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message"`
	Report   *grading.Report          `json:"report"`
	Failures []grading.StudentFailure `json:"failures"`
	Errors   map[string]string        `json:"errors"`
	Data     json.RawMessage          `json:"data"`
}

type httpTest struct {
	name        string
	method      string
	path        string
	body        interface{}
	token       string
	wantCode    int
	wantMessage string
	wantErrors  []string // fields
}

type mailerMock struct {
	mu      sync.Mutex
	reports []grading.Report
}

func (m *mailerMock) SendReport(report grading.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
}

func (m *mailerMock) sent() []grading.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]grading.Report(nil), m.reports...)
}

type app struct {
	handler http.Handler
	store   *testutil.Store
	gate    *period.Gate
	mailer  *mailerMock
	logger  *testutil.Logger
}

// newApp serves a grading service backed by the in-memory store.
// Module 10 (elements 101 & 102) is taught to field 1 in semester 1, where students 1 & 2 are enrolled.
func newApp(t *testing.T, svc ...GradingService) *app {
	conf := testutil.NewConfig()
	a := &app{
		store:  testutil.NewStore(t),
		gate:   period.NewGate(conf.Grading),
		mailer: new(mailerMock),
		logger: new(testutil.Logger),
	}
	a.store.Catalog.AddModules(testutil.NewModule(10, 1, 1, 1,
		testutil.NewElement(101, 1, 1, 1),
		testutil.NewElement(102, 1, 1, 2),
	))
	a.store.Enroll(1, 1, 1, 2)

	var gradingSvc GradingService
	if len(svc) > 0 {
		gradingSvc = svc[0]
	} else {
		gradingSvc = grading.NewService(
			a.store.DB, a.store.Enrollments, a.store.Catalog, a.store.Grades, a.gate, a.logger,
			grading.NewOptions(conf.Grading),
		)
	}

	a.handler = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         a.logger,
		GradingSvc:     gradingSvc,
		Gate:           a.gate,
		Mailer:         a.mailer,
		DisableReqLogs: true,
	})
	return a
}

func (a *app) do(t *testing.T, tt httpTest) httpResponse {
	var body bytes.Buffer
	if tt.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(tt.body))
	}
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, tt.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if tt.token != "" {
		req.Header.Set("Authorization", "Bearer "+tt.token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var resp httpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantMessage != "" {
		assert.Equal(t, tt.wantMessage, resp.Message)
	}
	for _, fld := range tt.wantErrors {
		assert.Contains(t, resp.Errors, fld)
	}
	return resp
}

func getToken(t *testing.T, username string, roles ...string) string {
	conf := testutil.NewConfig()
	token, err := GenerateToken(conf, NewClaims(conf, "42", username, roles...))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}
