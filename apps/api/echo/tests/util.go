package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/contractgrading/apps/api/echo"
	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
	emailsvc "github.com/trezcool/contractgrading/services/email"
	"github.com/trezcool/contractgrading/storage/database/inmem"
	"github.com/trezcool/contractgrading/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}

	teacher = core.Person{ID: "instructor-1", Username: "msmith", Email: "m.smith@school.edu"}
)

type testApp struct {
	srv     *Server
	conf    *core.Config
	repo    testutil.Seeder
	class   testutil.Class
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := testutil.NewConfig()
	conf.Server.DisableReqLogs = true
	logger, _ := testutil.NewLogger(conf)

	// set up DB & repos
	repo := inmemdb.NewGradeImportRepository(inmemdb.Open())
	class := testutil.SeedClass(t, repo)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	importSvc := gradeimport.NewService(repo, mailSvc, logger, conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	gradeimport.InitValidators(validate, translator)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		ImportSvc:  importSvc,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return testApp{srv: srv, conf: conf, repo: repo, class: class, mailSvc: mailSvc}
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
	extra    interface{}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest posts `content` as the "file" form field; an empty filename sends no file.
func newUploadRequest(t *testing.T, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("comment", "no file"))
	}
	require.NoError(t, w.Close())

	req, rec := newAuthRequest(http.MethodPost, path, token, body.Bytes())
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, person core.Person, roles ...string) string {
	claims := NewClaims(conf, person, "Mary Smith", roles...)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
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

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
