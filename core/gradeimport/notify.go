package gradeimport

import (
	"bytes"
	"encoding/csv"
	"log"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/contractgrading/core"
)

const resultEmailTemplate = "import_result"

var (
	resultText = `Hello {{ with .Data.Recipient }}{{ . }}{{ else }}there{{ end }},

Your gradebook import {{ .Data.Result.ID }} has finished.

Grades updated:   {{ .Data.Result.ProcessedGrades }}
Absences updated: {{ .Data.Result.ProcessedAbsences }}
Students touched: {{ .Data.Result.ProcessedStudents }}
{{ if .Data.Result.Success }}All changes were applied.{{ else }}{{ len .Data.Result.Errors }} change(s) failed, see the attached file. You can resubmit only those.{{ end }}

{{ .FrontendBaseURL }}/classes/{{ .Data.Result.ClassID }}
`

	resultHTML = `<p>Hello {{ with .Data.Recipient }}{{ . }}{{ else }}there{{ end }},</p>
<p>Your gradebook import <code>{{ .Data.Result.ID }}</code> has finished.</p>
<ul>
  <li>Grades updated: {{ .Data.Result.ProcessedGrades }}</li>
  <li>Absences updated: {{ .Data.Result.ProcessedAbsences }}</li>
  <li>Students touched: {{ .Data.Result.ProcessedStudents }}</li>
</ul>
{{ if .Data.Result.Success }}<p>All changes were applied.</p>{{ else }}<p>{{ len .Data.Result.Errors }} change(s) failed, see the attached file. You can resubmit only those.</p>{{ end }}
<p><a href="{{ .FrontendBaseURL }}/classes/{{ .Data.Result.ClassID }}">Open the class</a></p>
`
)

func init() {
	if err := core.RegisterEmailTemplate(resultEmailTemplate, resultText, resultHTML); err != nil {
		log.Fatalf("%+v", err)
	}
}

type resultEmailData struct {
	Recipient string
	Result    ImportResult
}

// failuresCSV renders the failed changes as student,assignment,error rows.
func failuresCSV(result ImportResult) (*bytes.Buffer, error) {
	buff := new(bytes.Buffer)
	w := csv.NewWriter(buff)
	if err := w.Write([]string{"Student", "Assignment", "Error"}); err != nil {
		return nil, err
	}
	for _, e := range result.Errors {
		if err := w.Write([]string{e.Student, e.Assignment, e.Message}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buff, w.Error()
}

// NotifyResult emails the commit summary to the instructor; failures are attached as CSV.
func (svc *service) NotifyResult(to mail.Address, result ImportResult) error {
	if !svc.conf.Import.NotifyOnCommit || to.Address == "" {
		return nil
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Gradebook import finished",
		TemplateName: resultEmailTemplate,
		TemplateData: resultEmailData{Recipient: to.Name, Result: result},
	}
	if len(result.Errors) > 0 {
		content, err := failuresCSV(result)
		if err != nil {
			return errors.Wrap(err, "writing failures csv")
		}
		if err = msg.Attach(content, "import-"+result.ID+"-failures.csv", "text/csv"); err != nil {
			return errors.Wrap(err, "attaching failures csv")
		}
	}

	svc.mailSvc.SendMessages(msg)
	return nil
}
