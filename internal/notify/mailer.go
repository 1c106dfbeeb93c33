// Package notify dispatches operator notifications for freshly generated
// artifacts.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/voxnote/voxnote/internal/config"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
)

type Notifier interface {
	// NotifyArtifact announces a generated artifact, including a quick view
	// of its content.
	NotifyArtifact(ctx context.Context, documentName, artifactName, content string) error
}

type smtpNotifier struct {
	cfg config.MailConfig
	md  goldmark.Markdown
}

func NewSMTPNotifier(cfg config.MailConfig) Notifier {
	return &smtpNotifier{
		cfg: cfg,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (s *smtpNotifier) NotifyArtifact(ctx context.Context, documentName, artifactName, content string) error {
	from := strings.TrimSpace(s.cfg.From)
	to := strings.TrimSpace(s.cfg.To)
	if s.cfg.Host == "" || s.cfg.Port == 0 || from == "" || to == "" {
		return fmt.Errorf("mail config incomplete: %w", appErr.ErrInvalid)
	}

	subject := fmt.Sprintf("[voxnote] Post draft generated: %s", artifactName)
	plain := plainBody(documentName, artifactName, content)
	html, err := s.renderHTML(content)
	if err != nil {
		// Fall back to the plain part alone rather than dropping the mail.
		logutil.GetLogger(ctx).Warn("render notification html failed", zap.Error(err))
		html = ""
	}
	msg, err := buildMessage(from, to, subject, plain, html)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	logutil.GetLogger(ctx).Info("notification sent",
		zap.String("artifact", artifactName), zap.String("to", to))
	return nil
}

func (s *smtpNotifier) renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func plainBody(documentName, artifactName, content string) string {
	var b strings.Builder
	b.WriteString("A post draft was generated from the transcribed session document.\n\n")
	fmt.Fprintf(&b, "Source document: %s\n", documentName)
	fmt.Fprintf(&b, "Artifact: %s\n\n", artifactName)
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("Quick view\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	b.WriteString(content)
	b.WriteString("\n\n--\nvoxnote bot\n")
	return b.String()
}

// buildMessage assembles a multipart/alternative MIME message. The html
// part is omitted when empty.
func buildMessage(from, to, subject, plain, html string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	textPart, err := writer.CreatePart(map[string][]string{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(plain)); err != nil {
		return nil, err
	}
	if html != "" {
		htmlPart, err := writer.CreatePart(map[string][]string{
			"Content-Type": {"text/html; charset=UTF-8"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := htmlPart.Write([]byte(html)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
