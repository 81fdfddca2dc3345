package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit_SetsGlobalDefault(t *testing.T) {
	Init()
	l := slog.Default()
	if l == nil {
		t.Fatal("slog.Default() is nil after Init()")
	}
	if _, ok := l.Handler().(*PrettyHandler); !ok {
		t.Fatalf("default handler is %T, want *PrettyHandler", l.Handler())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		got := parseLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func record(msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), slog.LevelInfo, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestHandleFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	h := NewPretty(&buf, slog.LevelInfo, false)

	err := h.Handle(context.Background(), record("daemon started",
		slog.Int("pid", 42),
		slog.String("state", "timer busy"),
		slog.Duration("poll", 5*time.Second),
	))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := buf.String()
	want := "09:30:00.000  INFO   daemon started pid=42 state=\"timer busy\" poll=5s\n"
	if got != want {
		t.Errorf("Handle output = %q, want %q", got, want)
	}
}

func TestHandleColorWrapsEscapes(t *testing.T) {
	var buf bytes.Buffer
	h := NewPretty(&buf, slog.LevelInfo, true)

	if err := h.Handle(context.Background(), record("hello")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, ansiBold+"hello"+ansiReset) {
		t.Errorf("message not bolded; got %q", got)
	}
	if !strings.Contains(got, ansiCyan) {
		t.Errorf("info level not cyan; got %q", got)
	}
}

func TestEnabledRespectsThreshold(t *testing.T) {
	h := NewPretty(&bytes.Buffer{}, slog.LevelWarn, false)
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled at warn threshold")
	}
	if !h.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn disabled at warn threshold")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("error disabled at warn threshold")
	}
}

func TestWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewPretty(&buf, slog.LevelInfo, false)

	l := slog.New(h).With(slog.String("app", "pomo")).WithGroup("timer")
	l.Info("tick", slog.Int("remaining", 90))

	got := buf.String()
	if !strings.Contains(got, "app=pomo") {
		t.Errorf("pre-group attr qualified or lost; got %q", got)
	}
	if !strings.Contains(got, "timer.remaining=90") {
		t.Errorf("group prefix missing; got %q", got)
	}
}

func TestWithAttrsClonesDoNotShare(t *testing.T) {
	var bufA, bufB bytes.Buffer
	base := NewPretty(&bytes.Buffer{}, slog.LevelInfo, false)
	parent := base.WithAttrs([]slog.Attr{slog.String("shared", "yes")})

	a := parent.WithAttrs([]slog.Attr{slog.String("side", "a")}).(*PrettyHandler)
	b := parent.WithAttrs([]slog.Attr{slog.String("side", "b")}).(*PrettyHandler)
	a.w = &bufA
	b.w = &bufB

	if err := a.Handle(context.Background(), record("msg")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := b.Handle(context.Background(), record("msg")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !strings.Contains(bufA.String(), "side=a") || strings.Contains(bufA.String(), "side=b") {
		t.Errorf("clone a attrs wrong; got %q", bufA.String())
	}
	if !strings.Contains(bufB.String(), "side=b") || strings.Contains(bufB.String(), "side=a") {
		t.Errorf("clone b attrs wrong; got %q", bufB.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		val  slog.Value
		want string
	}{
		{slog.StringValue("plain"), "plain"},
		{slog.StringValue("two words"), `"two words"`},
		{slog.StringValue(""), `""`},
		{slog.IntValue(7), "7"},
		{slog.BoolValue(true), "true"},
		{slog.DurationValue(1500 * time.Millisecond), "1.5s"},
		{slog.AnyValue(errors.New("no timer")), `"no timer"`},
	}
	for _, tt := range tests {
		if got := formatValue(tt.val); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.val, got, tt.want)
		}
	}
}
