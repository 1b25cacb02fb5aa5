package notify

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"

	"ocsbridge/internal/events"
)

// Sender abstracts message dispatch so the dispatcher can be tested
// without hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// SendTimeout bounds how long Handle waits on all targets of one event.
const SendTimeout = 5 * time.Second

// Dispatcher forwards selected bus events to every configured Shoutrrr URL.
type Dispatcher struct {
	urls    []string
	sender  Sender
	timeout time.Duration
}

// NewDispatcher returns nil when there is nothing to notify.
func NewDispatcher(urls []string, sender Sender) *Dispatcher {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Dispatcher{urls: clean, sender: sender, timeout: SendTimeout}
}

// Attach subscribes the dispatcher to new-device events. Handlers run on the
// publishing request, so a registration reply can wait up to SendTimeout.
func (d *Dispatcher) Attach(bus *events.Bus) {
	if d == nil || bus == nil {
		return
	}
	bus.Subscribe(d.Handle, events.DeviceRegistered)
	log.Printf("🔔 Notifications enabled for %d target(s)", len(d.urls))
}

// Handle sends e to every target in order. Failures are logged and never
// returned; the inventory that triggered the event is already committed.
// Targets still pending when the timeout expires are skipped.
func (d *Dispatcher) Handle(e events.Event) {
	msg := FormatMessage(e)
	deadline := time.NewTimer(d.timeout)
	defer deadline.Stop()

	for i, target := range d.urls {
		done := make(chan error, 1)
		go func() { done <- d.sender.Send(target, msg) }()

		select {
		case err := <-done:
			if err != nil {
				log.Printf("❌ notify: send to %s failed: %v", redact(target), err)
			}
		case <-deadline.C:
			log.Printf("⏱️  notify: timed out after %s, %d target(s) skipped", d.timeout, len(d.urls)-i)
			return
		}
	}
}

// FormatMessage builds a human-readable notification string.
func FormatMessage(e events.Event) string {
	prefix := fmt.Sprintf("[%s]", e.Severity)
	if e.Hostname != "" {
		prefix += fmt.Sprintf(" [%s]", e.Hostname)
	}
	msg := prefix + " " + e.Message
	if e.DeviceID != "" {
		msg += fmt.Sprintf(" (device %s", e.DeviceID)
		if e.Source != "" {
			msg += ", via " + e.Source
		}
		msg += ")"
	}
	return msg
}

// redact keeps only the service scheme and host of a Shoutrrr URL, which
// embed tokens in the user-info and path.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Hostname()
}
