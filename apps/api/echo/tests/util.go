package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/autograder/apps/api/echo"
	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
	metricsvc "github.com/trezcool/autograder/services/metrics"
	"github.com/trezcool/autograder/storage/database/dummy"
	"github.com/trezcool/autograder/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testApp struct {
	Server
	conf *core.Config
	repo quiz.Repository
	svc  *quiz.Service
}

func setup(t *testing.T, configure ...func(conf *core.Config)) testApp {
	conf := testutil.Config()
	for _, f := range configure {
		f(conf)
	}

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewQuizRepository(db)

	// set up services
	svc, err := quiz.NewService(repo, conf, testutil.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close(context.Background()) })

	// set up server
	server := NewServer(&Options{
		Conf:           conf,
		Logger:         testutil.NopLogger{},
		QuizSvc:        svc,
		Metrics:        metricsvc.NewRecorder(prometheus.NewRegistry()),
		DisableReqLogs: true,
	})
	return testApp{Server: server, conf: conf, repo: repo, svc: svc}
}

func (app testApp) token(t *testing.T, subject string, roles ...string) string {
	claims := NewClaims(app.conf.AppName, subject, subject+"@test.test", "", roles, time.Hour)
	token, err := GenerateToken(claims, app.conf.SecretKey)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData compares the body only when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
