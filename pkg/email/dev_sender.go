package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// DevSender implements EmailSender for local development. It writes each
// email as an HTML file to a directory instead of sending it.
type DevSender struct {
	dir string
}

// NewDevSender creates a development email sender that saves emails to disk.
// The directory is created on first send if it does not exist.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

// SendEmail writes the email to the configured directory.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	identifier := params.Tag
	if identifier == "" {
		identifier = params.Subject
	}
	name := fmt.Sprintf("%s_%s.html",
		time.Now().Format("2006_01_02_150405"),
		sanitizeFilename(identifier),
	)

	body := fmt.Sprintf("<!-- to: %s | subject: %s -->\n%s", params.SendTo, params.Subject, params.BodyHTML)
	if err := os.WriteFile(filepath.Join(d.dir, name), []byte(body), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write email file: %v", ErrFailedToSendEmail, err)
	}
	return nil
}

func sanitizeFilename(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeFilenameChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
