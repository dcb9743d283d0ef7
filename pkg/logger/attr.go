package logger

import (
	"log/slog"
	"strings"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Component records the emitting component under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Phone records a masked phone number under the key "phone". Only the
// last two digits survive; phone numbers are PII and must not reach
// log sinks in full.
func Phone(number string) slog.Attr {
	return slog.String("phone", maskPhone(number))
}

func maskPhone(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return number[:2] + strings.Repeat("*", len(number)-4) + number[len(number)-2:]
}
