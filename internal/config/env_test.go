package config

import (
	"testing"
	"time"
)

func Test_String_Default(t *testing.T) {
	got := String("SIZECHECK_TEST_STRING_UNSET", "fallback")
	if got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
}

func Test_String_Override(t *testing.T) {
	t.Setenv("SIZECHECK_TEST_STRING", "value")
	got := String("SIZECHECK_TEST_STRING", "fallback")
	if got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func Test_Duration_Override(t *testing.T) {
	t.Setenv("SIZECHECK_TEST_DURATION", "250ms")
	got, err := Duration("SIZECHECK_TEST_DURATION", 5*time.Second)
	if err != nil {
		t.Fatalf("Duration() err=%v", err)
	}
	if got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v, want 250ms", got)
	}
}

func Test_Int64_Invalid(t *testing.T) {
	t.Setenv("SIZECHECK_TEST_INT", "nope")
	if _, err := Int64("SIZECHECK_TEST_INT", 42); err == nil {
		t.Fatalf("Int64() expected error")
	}
}

func Test_Bool_Default(t *testing.T) {
	got, err := Bool("SIZECHECK_TEST_BOOL_UNSET", true)
	if err != nil {
		t.Fatalf("Bool() err=%v", err)
	}
	if !got {
		t.Fatalf("Bool()=%v, want true", got)
	}
}

func Test_Fields(t *testing.T) {
	t.Setenv("SIZECHECK_TEST_FIELDS", "  -s  -h ")
	got := Fields("SIZECHECK_TEST_FIELDS", nil)
	if len(got) != 2 || got[0] != "-s" || got[1] != "-h" {
		t.Fatalf("Fields()=%v, want [-s -h]", got)
	}
}
