package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/config"
)

type scriptedSender struct {
	mu        sync.Mutex
	failFirst int
	attempts  map[string]int
	delivered chan Message
}

func newScriptedSender(failFirst int) *scriptedSender {
	return &scriptedSender{
		failFirst: failFirst,
		attempts:  map[string]int{},
		delivered: make(chan Message, 16),
	}
}

func (s *scriptedSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.attempts[msg.To]++
	n := s.attempts[msg.To]
	s.mu.Unlock()
	if n <= s.failFirst {
		return errors.New("relay unavailable")
	}
	s.delivered <- msg
	return nil
}

func (s *scriptedSender) Attempts(to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[to]
}

func startMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()
	m := New(sender, Options{Capacity: 4, RetryDelay: 10 * time.Millisecond}, zap.NewNop())
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func waitDelivered(t *testing.T, s *scriptedSender) Message {
	t.Helper()
	select {
	case msg := <-s.delivered:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
		return Message{}
	}
}

func TestEnqueueDelivers(t *testing.T) {
	sender := newScriptedSender(0)
	m := startMailer(t, sender)

	want := Message{To: "ana@example.com", Subject: "Verify", Body: "link"}
	if err := m.Enqueue(context.Background(), want); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := waitDelivered(t, sender); got != want {
		t.Fatalf("delivered %+v, want %+v", got, want)
	}
}

func TestFailedMessageIsRetriedOnce(t *testing.T) {
	sender := newScriptedSender(1)
	m := startMailer(t, sender)

	if err := m.Enqueue(context.Background(), Message{To: "bo@example.com"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitDelivered(t, sender)
	if got := sender.Attempts("bo@example.com"); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestMessageDroppedAfterSecondFailure(t *testing.T) {
	sender := newScriptedSender(100)
	m := startMailer(t, sender)

	if err := m.Enqueue(context.Background(), Message{To: "cy@example.com"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sender.Attempts("cy@example.com") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if got := sender.Attempts("cy@example.com"); got != 2 {
		t.Fatalf("attempts = %d, want exactly 2", got)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	m := New(newScriptedSender(0), Options{Capacity: 1}, zap.NewNop())
	m.Start(context.Background())
	m.Stop()
	m.Stop()

	if err := m.Enqueue(context.Background(), Message{To: "x@example.com"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue after Stop: got %v, want ErrStopped", err)
	}
}

func TestEnqueueRespectsContextWhenFull(t *testing.T) {
	m := New(newScriptedSender(0), Options{Capacity: 1}, zap.NewNop())
	if err := m.Enqueue(context.Background(), Message{To: "first@example.com"}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Enqueue(ctx, Message{To: "second@example.com"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Enqueue on full queue: got %v, want DeadlineExceeded", err)
	}
}

func TestFormatMessage(t *testing.T) {
	raw := string(formatMessage("noreply@example.com", Message{To: "a@example.com", Subject: "Hi", Body: "hello"}))
	for _, want := range []string{"From: noreply@example.com\r\n", "To: a@example.com\r\n", "Subject: Hi\r\n", "\r\n\r\nhello"} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
}

func TestNewSender(t *testing.T) {
	logger := zap.NewNop()
	for transport, want := range map[string]string{"smtp": "*mailer.SMTPSender", "amqp": "*mailer.AMQPSender", "log": "*mailer.LogSender"} {
		sender, err := NewSender(config.MailConfig{Transport: transport}, logger)
		if err != nil {
			t.Fatalf("NewSender(%s): %v", transport, err)
		}
		if got := typeName(sender); got != want {
			t.Errorf("NewSender(%s) = %s, want %s", transport, got, want)
		}
	}
	if _, err := NewSender(config.MailConfig{Transport: "pigeon"}, logger); err == nil {
		t.Error("NewSender(pigeon): got nil error")
	}
}

func typeName(s Sender) string {
	switch s.(type) {
	case *SMTPSender:
		return "*mailer.SMTPSender"
	case *AMQPSender:
		return "*mailer.AMQPSender"
	case *LogSender:
		return "*mailer.LogSender"
	}
	return "unknown"
}
