package email

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"strings"
	"text/template"
	"time"
)

// TemplateIDHeader names the template a message was rendered from.
// RedisSender keys stored mock emails by it.
const TemplateIDHeader = "X-Template-ID"

// Render executes a subject or body template against data. Missing keys
// render as empty strings.
func Render(name, text string, data map[string]string) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Message is a plain-text email ready to be built into wire form.
type Message struct {
	From       string
	To         []string
	Subject    string
	Body       string
	TemplateID string
	Date       time.Time
}

// Build returns the message with CRLF-terminated headers.
func (m Message) Build() []byte {
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var sb strings.Builder
	writeHeader := func(k, v string) {
		sb.WriteString(k + ": " + stripNewlines(v) + "\r\n")
	}
	writeHeader("To", strings.Join(m.To, ", "))
	writeHeader("From", m.From)
	writeHeader("Subject", m.Subject)
	writeHeader("Date", date.Format(time.RFC1123Z))
	if m.TemplateID != "" {
		writeHeader(TemplateIDHeader, m.TemplateID)
	}
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/plain; charset="UTF-8"`)
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// ParseHeaders reads the header block of a raw message.
func ParseHeaders(rawMessage []byte) (textproto.MIMEHeader, string, error) {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(rawMessage)))
	header, err := r.ReadMIMEHeader()
	if err != nil {
		return nil, "", err
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(r.R)
	return header, body.String(), nil
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
