package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/artmobile/artkit/pkg/logger"
)

// CodeSender delivers one-time codes over SMS.
type CodeSender interface {
	SendCode(ctx context.Context, phoneNumber, code string) error
}

// LogCodeSender writes codes to a logger instead of sending SMS.
// Development only: codes are secrets and must never be logged in
// production.
type LogCodeSender struct {
	Logger *slog.Logger
}

func (s *LogCodeSender) SendCode(ctx context.Context, phoneNumber, code string) error {
	log := s.Logger
	if log == nil {
		log = logger.Noop()
	}
	log.InfoContext(ctx, "sms code dispatched",
		logger.Component("sms"),
		logger.Phone(phoneNumber),
		slog.String("code", code),
	)
	return nil
}

// CaptureCodeSender records dispatched codes in memory for tests.
type CaptureCodeSender struct {
	mu    sync.Mutex
	codes map[string][]string
}

func NewCaptureCodeSender() *CaptureCodeSender {
	return &CaptureCodeSender{codes: make(map[string][]string)}
}

func (s *CaptureCodeSender) SendCode(ctx context.Context, phoneNumber, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phoneNumber] = append(s.codes[phoneNumber], code)
	return nil
}

// Last returns the most recent code sent to the number, or "".
func (s *CaptureCodeSender) Last(phoneNumber string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := s.codes[phoneNumber]
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

// Count returns how many codes were sent to the number.
func (s *CaptureCodeSender) Count(phoneNumber string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes[phoneNumber])
}
