package email

// Config holds email delivery configuration.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@artmobile.app"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@artmobile.app"`

	// DevMode routes emails to local files instead of Postmark.
	DevMode bool   `env:"EMAIL_DEV_MODE" envDefault:"false"`
	DevDir  string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
