package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/flowkit/errors"
)

func TestValidator_CollectsAllErrors(t *testing.T) {
	v := New().
		Required("name", "").
		Min("retries", -1, 0).
		OneOf("cache", "sometimes", []string{"off", "inputs", "code"})

	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	if len(v.Errors()) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(v.Errors()), v.Errors())
	}

	err := v.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("expected validation code, got %v", err)
	}
	for _, want := range []string{"name", "retries", "cache"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}

func TestValidator_NoErrors(t *testing.T) {
	v := New().Required("name", "train").Min("retries", 2, 0)
	if err := v.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidator_Custom(t *testing.T) {
	v := New().Custom(false, "outputs", "must be unique")
	if err := v.Validate(); err == nil {
		t.Error("expected error")
	}
}

type defTest struct {
	Name    string `yaml:"name" validate:"required"`
	Cache   string `yaml:"cache" validate:"omitempty,oneof=off inputs code"`
	Retries int    `yaml:"retries" validate:"min=0"`
}

func TestValidate_Struct(t *testing.T) {
	ok := defTest{Name: "train", Cache: "inputs", Retries: 2}
	if err := Validate(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := defTest{Cache: "sometimes", Retries: -1}
	err := Validate(bad)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"name", "cache", "retries"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"RetryLimit": "retry_limit",
		"Name":       "name",
		"CachePolicy": "cache_policy",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
