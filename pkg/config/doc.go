// Package config loads environment-backed configuration structs.
//
// Configuration is declared as plain structs with `env` tags and loaded
// through the generic Load function. A .env file in the working directory
// is read once per process before the first parse, which keeps local
// development friction-free without affecting deployed environments.
//
// Each struct type is parsed at most once per process and cached, so
// packages can call Load for their own config independently without
// re-reading the environment.
//
//	type MailerConfig struct {
//	    SenderEmail string `env:"SENDER_EMAIL,required"`
//	    DevMode     bool   `env:"MAILER_DEV_MODE" envDefault:"false"`
//	}
//
//	var cfg MailerConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
