package email

import (
	"strings"
	"testing"

	gomail "github.com/wneessen/go-mail"
)

func TestRenderLinkCode(t *testing.T) {
	html, err := renderLinkCode("482913")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"482913", "10 minutes", "Link your WhatsApp number", "<!DOCTYPE html>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected rendered email to contain %q", want)
		}
	}
}

func TestMessageRejectsBadRecipient(t *testing.T) {
	s := &SMTPSender{fromName: "FleetDesk", fromEmail: "noreply@fleetdesk.test"}
	if _, err := s.message("not an address", subjectLinkCode, "<p>x</p>"); err == nil {
		t.Fatalf("expected invalid recipient to be rejected")
	}
	msg, err := s.message("ada@example.com", subjectLinkCode, "<p>x</p>")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if got := msg.GetGenHeader(gomail.HeaderSubject); len(got) != 1 || got[0] != subjectLinkCode {
		t.Fatalf("expected subject %q, got %v", subjectLinkCode, got)
	}
}
