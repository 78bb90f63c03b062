package repo

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFallbackDatasetParses(t *testing.T) {
	repos := Fallback(discardLogger())
	if len(repos) == 0 {
		t.Fatalf("bundled dataset should not be empty")
	}

	first := repos[0]
	if first.ID == 0 || first.Name == "" || first.URL == "" {
		t.Fatalf("incomplete first entry: %+v", first)
	}
	if first.UpdatedAt.IsZero() {
		t.Fatalf("expected parsed updated_at, got zero time")
	}
}

func TestFallbackDatasetKeepsNullFields(t *testing.T) {
	var withNil, withValue bool
	for _, r := range Fallback(discardLogger()) {
		if r.Language == nil {
			withNil = true
		} else {
			withValue = true
		}
	}
	if !withNil || !withValue {
		t.Fatalf("dataset should exercise both nil and non-nil language fields")
	}
}

func TestDecodeFallbackMalformed(t *testing.T) {
	repos := decodeFallback([]byte(`{"not":"a list"`), discardLogger())
	if repos == nil {
		t.Fatalf("malformed dataset should yield empty slice, not nil")
	}
	if len(repos) != 0 {
		t.Fatalf("malformed dataset should yield no entries, got %d", len(repos))
	}
}

func TestDecodeFallbackNilLogger(t *testing.T) {
	// 日志器缺失时不应 panic。
	if repos := decodeFallback([]byte("boom"), nil); len(repos) != 0 {
		t.Fatalf("expected empty slice, got %d entries", len(repos))
	}
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
