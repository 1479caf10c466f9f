package i18n_test

import (
	"testing"

	"github.com/reoring/structpack/i18n"
)

func TestDefaultMessages(t *testing.T) {
	if got := i18n.T("length_overflow", nil); got != "value exceeds declared maximum length" {
		t.Fatalf("unexpected message: %q", got)
	}
	// unknown codes fall back to the code itself
	if got := i18n.T("no_such_code", nil); got != "no_such_code" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestJapaneseMessages(t *testing.T) {
	i18n.SetLanguage("ja")
	defer i18n.SetLanguage("en")

	if got := i18n.T("truncated", nil); got != "データが不足しています" {
		t.Fatalf("unexpected message: %q", got)
	}
}

type prefixTranslator struct{}

func (prefixTranslator) Message(code string, _ map[string]string) string { return "E:" + code }

func TestCustomTranslator(t *testing.T) {
	i18n.SetTranslator(prefixTranslator{})
	defer i18n.SetTranslator(nil)

	if got := i18n.T("truncated", nil); got != "E:truncated" {
		t.Fatalf("unexpected message: %q", got)
	}
}
