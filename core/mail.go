package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"net/http"
	"net/mail"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates   = make(map[string]emailTemplate)
	templatesMu sync.RWMutex
)

type (
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// RegisterEmailTemplate parses and caches the text and (optional) html bodies of a named email.
func RegisterEmailTemplate(name, text, html string) error {
	tmpl := emailTemplate{}
	var err error
	if tmpl.text, err = texttmpl.New(name).Option("missingkey=error").Parse(text); err != nil {
		return errors.Wrapf(err, "parsing %s text template", name)
	}
	if html != "" {
		if tmpl.html, err = htmltmpl.New(name).Option("missingkey=error").Parse(html); err != nil {
			return errors.Wrapf(err, "parsing %s html template", name)
		}
	}

	templatesMu.Lock()
	templates[name] = tmpl
	templatesMu.Unlock()
	return nil
}

func getEmailTemplate(name string) (emailTemplate, bool) {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	tmpl, ok := templates[name]
	return tmpl, ok
}

// Render fills TextContent and HTMLContent from BodyStr or the registered template.
func (m *EmailMessage) Render(frontendBaseURL string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmpl, ok := getEmailTemplate(m.TemplateName)
	if !ok {
		return errors.Errorf("email template %q not registered", m.TemplateName)
	}
	data := ContextData{FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}

	var buff bytes.Buffer
	if err := tmpl.text.Execute(&buff, data); err != nil {
		return errors.Wrap(err, "rendering text content")
	}
	m.TextContent = buff.String()

	if tmpl.html != nil {
		buff.Reset()
		if err := tmpl.html.Execute(&buff, data); err != nil {
			return errors.Wrap(err, "rendering html content")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err = encoder.Write(content); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}
	if err = encoder.Close(); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
