package emailsvc

import (
	"net/mail"
	texttmpl "text/template"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

var reportTmpl = texttmpl.Must(texttmpl.New("report").Parse(`{{ .Message }}

Operation:  {{ .Operation }}
Students:   {{ .Students }}
Succeeded:  {{ .Succeeded }}
{{- if eq .Operation "initialize" }}
Created:    {{ .Created.Elements }} elements, {{ .Created.Modules }} modules, {{ .Created.Semesters }} semesters, {{ .Created.Years }} years
{{- else }}
Finalized:  {{ .Finalized.Elements }} elements, {{ .Finalized.Modules }} modules, {{ .Finalized.Semesters }} semesters, {{ .Finalized.Years }} years
Pending:    {{ .Pending.Elements }} elements, {{ .Pending.Modules }} modules, {{ .Pending.Semesters }} semesters, {{ .Pending.Years }} years
{{- end }}
{{- if .Failures }}

Failed students:
{{- range .Failures }}
  - {{ .StudentID }}: {{ .Error }}
{{- end }}
{{- end }}
`))

// ReportMailer emails batch reports to the grading staff.
type ReportMailer struct {
	svc core.EmailService
	to  []mail.Address
}

func NewReportMailer(svc core.EmailService, conf *core.Config) *ReportMailer {
	return &ReportMailer{svc: svc, to: core.ParseAddresses(conf.Grading.ReportRecipients)}
}

// SendReport is a no-op when no recipient is configured.
func (m *ReportMailer) SendReport(report grading.Report) {
	if len(m.to) == 0 {
		return
	}
	subject := "Grades " + string(report.Operation)
	if !report.Success() {
		subject += " (partial failure)"
	}
	m.svc.SendMessages(&core.EmailMessage{
		To:           m.to,
		Subject:      subject,
		Template:     reportTmpl,
		TemplateData: report,
	})
}
