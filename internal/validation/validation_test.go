package validation

import (
	"errors"
	"strings"
	"testing"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Lang     string `json:"lang" validate:"omitempty,oneof=zh en"`
	Start    string `json:"startTime" validate:"omitempty,clock"`
}

func TestStructValid(t *testing.T) {
	err := Struct(signup{Email: "a@example.com", Password: "12345678", Lang: "zh", Start: "09:30"})
	if err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestStructFieldMessages(t *testing.T) {
	err := Struct(signup{Email: "nope", Password: "short", Lang: "fr", Start: "25:00"})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}

	want := map[string]string{
		"email":     "email must be a valid email address",
		"password":  "password must be at least 8 characters",
		"lang":      "lang must be one of: zh en",
		"startTime": "startTime must be a time in HH:MM format",
	}

	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Fatalf("field %s: expected %q, got %q", field, msg, verr.Fields[field])
		}
	}

	if !strings.Contains(verr.Error(), "email must be a valid email address") {
		t.Fatalf("unexpected error string %q", verr.Error())
	}
}

func TestErrorField(t *testing.T) {
	e := (&Error{}).Field("endDate", "endDate must be after startDate")

	if e.Error() != "endDate must be after startDate" {
		t.Fatalf("unexpected %q", e.Error())
	}
}
