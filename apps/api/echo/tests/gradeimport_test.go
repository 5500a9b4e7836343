package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/contractgrading/apps/api/echo"
	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
)

const gradebookCSV = "Student,ID,SIS Login ID,Section,Essay 1 (1234),Lab Report (1235),Current Score\n" +
	"    Points Possible,,,,100,100,\n" +
	"\"Doe, Jane\",1,jdoe,Bio 101,88,Completed,88\n" +
	"\"Smith, John\",2,jsmith,Bio 101,72,Missing,72\n"

func importPath(classID, action string) string {
	return "/v1/classes/" + classID + "/import/" + action
}

func TestImportAPI_auth(t *testing.T) {
	app := setup(t)
	path := importPath(app.class.ID, "assignments")

	tests := []httpTest{
		{
			name:     "missing token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "no instructor role",
			token:    getToken(t, app.conf, core.Person{ID: "student-1", Username: "jdoe"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "teacher",
			token:    getToken(t, app.conf, teacher, RoleTeacher),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, app.class.Assignments),
		},
		{
			name:     "admin",
			token:    getToken(t, app.conf, teacher, RoleAdmin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, app.class.Assignments),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, tt.token)
			app.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestImportAPI_assignments(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher, RoleTeacher)

	tt := httpTest{
		method:   http.MethodGet,
		path:     importPath("missing-class", "assignments"),
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: gradeimport.ErrClassNotFound.Error()}),
	}
	req, rec := newAuthRequest(tt.method, tt.path, token)
	app.srv.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func TestImportAPI_normalize(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher, RoleTeacher)
	path := importPath(app.class.ID, "normalize")

	t.Run("canvas export", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, token, "gradebook.csv", []byte(gradebookCSV))
		app.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp NormalizeResponse
		unmarchall(t, rec, &resp)
		assert.Equal(t, []string{"Essay 1 (1234)", "Lab Report (1235)"}, resp.Data.AssignmentColumns)
		assert.Len(t, resp.Data.Students, 2)
		assert.Equal(t, app.class.Assignments, resp.Assignments)

		essay, lab := app.class.Assignment(t, "Essay 1"), app.class.Assignment(t, "Lab Report")
		assert.Equal(t, []gradeimport.AssignmentMapping{
			{Column: "Essay 1 (1234)", Target: gradeimport.TargetAssignment, AssignmentID: essay.ID, GradingType: gradeimport.GradingPercentage},
			{Column: "Lab Report (1235)", Target: gradeimport.TargetAssignment, AssignmentID: lab.ID, GradingType: gradeimport.GradingStatus},
		}, resp.Suggestions)
	})

	tests := []struct {
		httpTest
		filename string
		content  string
	}{
		{
			httpTest: httpTest{
				name:     "no file",
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"file": "a .csv or .xlsx gradebook file is required"}`),
			},
		},
		{
			httpTest: httpTest{
				name:     "unsupported format",
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: gradeimport.ErrUnsupportedFormat.Error()}),
			},
			filename: "gradebook.pdf",
			content:  gradebookCSV,
		},
		{
			httpTest: httpTest{
				name:     "empty file",
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: gradeimport.ErrEmptyFile.Error()}),
			},
			filename: "gradebook.csv",
			content:  "",
		},
		{
			httpTest: httpTest{
				name:     "no assignment columns",
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"error": "no assignment columns found among 2 columns", "headers": ["Student", "Email"]}`),
			},
			filename: "gradebook.csv",
			content:  "Student,Email\nJane Doe,jane.doe@school.edu\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, path, token, tt.filename, []byte(tt.content))
			app.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt.httpTest, rec)
		})
	}
}

func TestImportAPI_previewAndCommit(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher, RoleTeacher)
	essay, lab := app.class.Assignment(t, "Essay 1"), app.class.Assignment(t, "Lab Report")

	data, err := gradeimport.NormalizeFile("gradebook.csv", strings.NewReader(gradebookCSV))
	require.NoError(t, err)

	previewReq := PreviewRequest{
		Data: data,
		Mappings: []gradeimport.AssignmentMapping{
			{Column: "Essay 1 (1234)", Target: gradeimport.TargetAssignment, AssignmentID: essay.ID, GradingType: gradeimport.GradingPoints},
			{Column: "Lab Report (1235)", Target: gradeimport.TargetAssignment, AssignmentID: lab.ID, GradingType: gradeimport.GradingStatus},
		},
	}
	req, rec := newAuthRequest(http.MethodPost, importPath(app.class.ID, "preview"), token, marchallObj(t, previewReq))
	app.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview gradeimport.ImportPreview
	unmarchall(t, rec, &preview)
	assert.Equal(t, int64(1), preview.ClassVersion)
	assert.Equal(t, 2, preview.Summary.MatchedStudents)
	require.Len(t, preview.GradeChanges, 4)

	commit := marchallObj(t, gradeimport.Commit{ClassVersion: preview.ClassVersion, GradeChanges: preview.GradeChanges})

	req, rec = newAuthRequest(http.MethodPost, importPath(app.class.ID, "commit"), token, commit)
	app.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result gradeimport.ImportResult
	unmarchall(t, rec, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.ProcessedGrades)
	assert.Equal(t, 2, result.ProcessedStudents)
	assert.Equal(t, int64(2), result.ClassVersion)

	sent := app.mailSvc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, teacher.Email, sent[0].To[0].Address)
	}

	t.Run("stale preview", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: gradeimport.ErrStaleImport.Error()}),
		}
		req, rec := newAuthRequest(http.MethodPost, importPath(app.class.ID, "commit"), token, commit)
		app.srv.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func TestImportAPI_validation(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher, RoleTeacher)

	data, err := gradeimport.NormalizeFile("gradebook.csv", strings.NewReader(gradebookCSV))
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "preview without mappings",
			path:     importPath(app.class.ID, "preview"),
			body:     marchallObj(t, PreviewRequest{Data: data}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"mappings": "this field is required"}`),
		},
		{
			name: "preview with unknown target",
			path: importPath(app.class.ID, "preview"),
			body: marchallObj(t, PreviewRequest{
				Data:     data,
				Mappings: []gradeimport.AssignmentMapping{{Column: "Essay 1 (1234)", Target: "bogus"}},
			}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"mappings[0].target": "must be one of assignment, absences or skip"}`),
		},
		{
			name: "preview without data",
			path: importPath(app.class.ID, "preview"),
			body: marchallObj(t, PreviewRequest{
				Mappings: []gradeimport.AssignmentMapping{{Column: "Essay 1 (1234)", Target: gradeimport.TargetSkip}},
			}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"data": "upload and normalize a gradebook first"}`),
		},
		{
			name:     "empty commit",
			path:     importPath(app.class.ID, "commit"),
			body:     []byte(`{"class_version": 1}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"grade_changes": "approve at least one change"}`),
		},
		{
			name:     "commit without student",
			path:     importPath(app.class.ID, "commit"),
			body:     []byte(`{"class_version": 1, "absence_changes": [{"new_absences": 2}]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"absence_changes[0].student_id": "this field is required"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, token, tt.body)
			app.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
