package domain

import (
	"errors"
	"testing"
)

func TestParseRecipient(t *testing.T) {
	cases := []struct {
		raw      string
		wantDesc string
		wantKind RecipientKind
		wantErr  bool
	}{
		{"@foo", "foo", RecipientHandle, false},
		{"@Foo_99", "Foo_99", RecipientHandle, false},
		{"123456", "123456", RecipientNumericID, false},
		{"  42  ", "42", RecipientNumericID, false},
		// "@" prefix always wins, even for an all-digit body
		{"@12345", "12345", RecipientHandle, false},
		{"", "", "", true},
		{"@", "", "", true},
		{"@foo bar", "", "", true},
		{"12a34", "", "", true},
		{"foo", "", "", true},
		{"-42", "", "", true},
	}

	for _, c := range cases {
		r, err := ParseRecipient(c.raw)
		if c.wantErr {
			if !errors.Is(err, ErrBadRecipient) {
				t.Errorf("ParseRecipient(%q): expected ErrBadRecipient, got %v", c.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRecipient(%q): unexpected error %v", c.raw, err)
			continue
		}
		if r.Descriptor != c.wantDesc || r.Kind != c.wantKind {
			t.Errorf("ParseRecipient(%q) = {%s %s}, want {%s %s}",
				c.raw, r.Descriptor, r.Kind, c.wantDesc, c.wantKind)
		}
	}
}

func TestRecipient_Matches_Handle(t *testing.T) {
	r := Recipient{Descriptor: "Foo", Kind: RecipientHandle}

	if !r.Matches(Identity{UserID: "1", Handle: "foo"}) {
		t.Error("Expected case-insensitive handle match")
	}
	if !r.Matches(Identity{UserID: "1", Handle: "FOO"}) {
		t.Error("Expected uppercase handle match")
	}
	if r.Matches(Identity{UserID: "1", Handle: "bar"}) {
		t.Error("Expected no match for different handle")
	}
	// A requester without a handle never matches a handle-addressed whisper
	if r.Matches(Identity{UserID: "1"}) {
		t.Error("Expected no match for identity without handle")
	}
}

func TestRecipient_Matches_NumericID(t *testing.T) {
	r := Recipient{Descriptor: "123", Kind: RecipientNumericID}

	if !r.Matches(Identity{UserID: "123", Handle: "whoever"}) {
		t.Error("Expected exact numeric match")
	}
	if r.Matches(Identity{UserID: "124"}) {
		t.Error("Expected no match for different id")
	}
	if r.Matches(Identity{Handle: "123"}) {
		t.Error("Expected handle to be ignored for numeric recipients")
	}
}

func TestRecipient_Display(t *testing.T) {
	h := Recipient{Descriptor: "foo", Kind: RecipientHandle}
	if h.Display() != "@foo" {
		t.Errorf("Expected '@foo', got '%s'", h.Display())
	}
	n := Recipient{Descriptor: "42", Kind: RecipientNumericID}
	if n.Display() != "user 42" {
		t.Errorf("Expected 'user 42', got '%s'", n.Display())
	}
}
