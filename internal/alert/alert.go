// Package alert sends email notifications when a circuit to the memos
// API opens.
package alert

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/avelac/retrace/internal/resilience"
)

// Mailer emails circuit-open alerts, at most one per endpoint per
// throttle window. With no API key or recipient configured it only logs.
type Mailer struct {
	apiKey      string
	fromName    string
	fromAddress string
	to          string
	throttle    time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	now  func() time.Time // for testing
	send func(*mail.SGMailV3) (*rest.Response, error)
}

func NewMailer(apiKey, fromName, fromAddress, to string, throttle time.Duration) *Mailer {
	if throttle <= 0 {
		throttle = resilience.DefaultCoolDown
	}
	m := &Mailer{
		apiKey:      apiKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		to:          to,
		throttle:    throttle,
		lastSent:    make(map[string]time.Time),
		now:         time.Now,
	}
	m.send = func(email *mail.SGMailV3) (*rest.Response, error) {
		return sendgrid.NewSendClient(m.apiKey).Send(email)
	}
	return m
}

// Notifier adapts the mailer to the breaker's open hook. The hook runs
// under the breaker lock, so delivery is handed off to a goroutine.
func (m *Mailer) Notifier() resilience.OpenNotifier {
	return func(endpoint string, failures int, lastError string) {
		go m.circuitOpened(endpoint, failures, lastError)
	}
}

func (m *Mailer) circuitOpened(endpoint string, failures int, lastError string) {
	if !m.shouldSend(endpoint) {
		return
	}

	log.Printf("alert: circuit open for endpoint %s after %d failures: %s", endpoint, failures, lastError)

	if m.apiKey == "" || m.to == "" {
		return
	}

	subject := fmt.Sprintf("Circuit open: memos endpoint %s", endpoint)
	body := fmt.Sprintf(
		"The circuit for memos endpoint %q opened after %d consecutive failures.\n\nLast error: %s\n\nQueries fall back to direct SQL until the circuit closes.",
		endpoint, failures, lastError,
	)

	from := mail.NewEmail(m.fromName, m.fromAddress)
	toEmail := mail.NewEmail("", m.to)
	email := mail.NewSingleEmail(from, subject, toEmail, body, body)

	response, err := m.send(email)
	if err != nil {
		log.Printf("alert: failed to send email: %v", err)
		return
	}
	if response.StatusCode >= 400 {
		log.Printf("alert: sendgrid error: status %d", response.StatusCode)
		return
	}

	log.Printf("alert: email sent to %s (status: %d)", m.to, response.StatusCode)
}

// shouldSend enforces the per-endpoint throttle window.
func (m *Mailer) shouldSend(endpoint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastSent[endpoint]; ok && m.now().Sub(last) < m.throttle {
		return false
	}
	m.lastSent[endpoint] = m.now()
	return true
}
