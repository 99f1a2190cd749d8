package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"
	"sort"
	"strings"

	"binary-plan-engine/utils"
)

const cutReportTemplate = `<html><body>
<h2>{{.Code}} — {{.PeriodStart.Format "2006-01-02"}} to {{.PeriodEnd.Format "2006-01-02"}}</h2>
<table border="1" cellpadding="4">
<tr><td>Processed</td><td>{{.Processed}}</td></tr>
<tr><td>Successful</td><td>{{.Successful}}</td></tr>
<tr><td>Failed / cancelled</td><td>{{.Failed}}</td></tr>
<tr><td>Total volume settled</td><td>{{.TotalVolume}}</td></tr>
<tr><td>Total paid</td><td>{{.TotalPaid}}</td></tr>
</table>
{{if .TopEarners}}
<h3>Top earners</h3>
<ol>
{{range .TopEarners}}<li>{{.MemberID}} — {{.Paid}}</li>
{{end}}</ol>
{{end}}
</body></html>`

// ReportService renders the batch summary, emails it and archives a copy to
// object storage. Everything here is best-effort by contract.
type ReportService struct {
	Notifier   Notifier
	Recipients []string
	Archive    bool

	tmpl *template.Template
}

func NewReportService(notifier Notifier) *ReportService {
	var recipients []string
	for _, r := range strings.Split(os.Getenv("REPORT_RECIPIENTS"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &ReportService{
		Notifier:   notifier,
		Recipients: recipients,
		Archive:    os.Getenv("REPORT_ARCHIVE_ENABLED") == "true",
		tmpl:       template.Must(template.New("cut_report").Parse(cutReportTemplate)),
	}
}

// DeliverCutReport emails the rendered summary and archives it. Failures are
// returned for logging only; the caller never rolls anything back.
func (s *ReportService) DeliverCutReport(summary *CutSummary) error {
	html, err := s.render(summary)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s summary %s", summary.Code, summary.PeriodStart.Format("2006-01-02"))
	if err := s.Notifier.SendReport(s.Recipients, subject, html); err != nil {
		return err
	}

	if s.Archive {
		key := fmt.Sprintf("reports/%s/%s.html", strings.ToLower(string(summary.Code)), summary.PeriodStart.Format("2006-01-02"))
		url, err := utils.UploadBytesToR2([]byte(html), key, "text/html")
		if err != nil {
			return fmt.Errorf("report archive: %w", err)
		}
		log.Printf("🗄️ [REPORT] archived %s", url)
	}

	return nil
}

func (s *ReportService) render(summary *CutSummary) (string, error) {
	top := make([]RecordOutcome, 0, len(summary.Records))
	for _, r := range summary.Records {
		if r.Status == RecordProcessed && r.Paid.IsPositive() {
			top = append(top, r)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Paid.GreaterThan(top[j].Paid) })
	if len(top) > 10 {
		top = top[:10]
	}

	var buf bytes.Buffer
	err := s.tmpl.Execute(&buf, struct {
		*CutSummary
		TopEarners []RecordOutcome
	}{summary, top})
	if err != nil {
		return "", fmt.Errorf("report render: %w", err)
	}
	return buf.String(), nil
}
