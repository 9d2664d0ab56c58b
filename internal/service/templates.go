package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"site-assistant-go/internal/model"
	texttemplate "text/template"
)

var estimateEmailTemplate = htmltemplate.Must(htmltemplate.New("estimate").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Thank you for contacting {{.Brand}}{{if .Name}}, {{.Name}}{{end}}!</h2>
  <p>We have received your request{{if .Service}} for <strong>{{.Service}}</strong>{{end}}.</p>
  <table cellpadding="4">
    {{if .CompanyName}}<tr><td><strong>Company</strong></td><td>{{.CompanyName}}</td></tr>{{end}}
    {{if .MobileNumber}}<tr><td><strong>Mobile</strong></td><td>{{.MobileNumber}}</td></tr>{{end}}
    {{if .Service}}<tr><td><strong>Service</strong></td><td>{{.Service}}</td></tr>{{end}}
  </table>
  <p>Our team will review your details and get back to you with an estimate shortly.</p>
  <p>Best regards,<br>The {{.Brand}} Team</p>
</body>
</html>`))

var whatsAppMessageTemplate = texttemplate.Must(texttemplate.New("whatsapp").Parse(
	`Hello{{if .Name}} {{.Name}}{{end}}! Thank you for your interest in {{.Brand}}{{if .Service}} {{.Service}} services{{end}}. ` +
		`We have received your request and our team will contact you soon.`))

type leadTemplateData struct {
	Brand        string
	Name         string
	CompanyName  string
	MobileNumber string
	Service      string
}

func newLeadTemplateData(brand string, lead model.Lead) leadTemplateData {
	return leadTemplateData{
		Brand:        brand,
		Name:         lead.Name(),
		CompanyName:  lead.CompanyName(),
		MobileNumber: lead.MobileNumber(),
		Service:      lead.Service(),
	}
}

// estimateEmailSubject 形如 "<品牌> - <服务> Inquiry"，没有服务时用 "Service"。
func estimateEmailSubject(brand string, lead model.Lead) string {
	service := lead.Service()
	if service == "" {
		service = "Service"
	}
	return fmt.Sprintf("%s - %s Inquiry", brand, service)
}

func renderEstimateEmail(brand string, lead model.Lead) (string, error) {
	var buf bytes.Buffer
	if err := estimateEmailTemplate.Execute(&buf, newLeadTemplateData(brand, lead)); err != nil {
		return "", fmt.Errorf("render estimate email: %w", err)
	}
	return buf.String(), nil
}

func renderWhatsAppMessage(brand string, lead model.Lead) (string, error) {
	var buf bytes.Buffer
	if err := whatsAppMessageTemplate.Execute(&buf, newLeadTemplateData(brand, lead)); err != nil {
		return "", fmt.Errorf("render whatsapp message: %w", err)
	}
	return buf.String(), nil
}
