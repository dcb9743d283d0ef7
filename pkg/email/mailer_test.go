package email_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmobile/artkit/pkg/email"
)

func TestSendEmailParamsValidate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Verify your email",
		BodyHTML: "<p>hello</p>",
	}
	assert.NoError(t, valid.Validate())

	cases := map[string]email.SendEmailParams{
		"missing recipient": {Subject: "s", BodyHTML: "b"},
		"invalid recipient": {SendTo: "nope", Subject: "s", BodyHTML: "b"},
		"missing subject":   {SendTo: "user@example.com", BodyHTML: "b"},
		"missing body":      {SendTo: "user@example.com", Subject: "s"},
	}
	for name, params := range cases {
		params := params
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, params.Validate(), email.ErrInvalidParams)
		})
	}
}

func TestNewPostmarkClientConfig(t *testing.T) {
	t.Parallel()

	_, err := email.NewPostmarkClient(email.Config{})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = email.NewPostmarkClient(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "not-an-email",
		SupportEmail:         "support@example.com",
	})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = email.NewPostmarkClient(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "no-reply@example.com",
		SupportEmail:         "support@example.com",
	})
	assert.NoError(t, err)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Verify your email",
		BodyHTML: "<p>click the link</p>",
		Tag:      "email-verification",
	})
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "user@example.com")
	assert.Contains(t, string(content), "click the link")
}
