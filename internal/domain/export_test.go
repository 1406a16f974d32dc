package domain

import (
	"bytes"
	"strings"
	"testing"
)

func TestExportStripsProgress(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportTests(&buf, []Test{sampleTest()}); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	for _, field := range []string{"selectedChoice", "eliminatedChoices", "revealedIncorrectChoice"} {
		if strings.Contains(out, field) {
			t.Fatalf("export leaked progress field %q:\n%s", field, out)
		}
	}
	if !strings.Contains(out, "correctChoice") {
		t.Fatalf("export dropped the answer key:\n%s", out)
	}

	tests, err := ImportTests(&buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(tests) != 1 || tests[0].ID != "test-1" {
		t.Fatalf("roundtrip lost the test: %+v", tests)
	}
	if tests[0].Sections[0].Questions[0].CorrectChoice == nil {
		t.Fatalf("roundtrip lost the answer key")
	}
}

func TestImportSingleObject(t *testing.T) {
	raw := `{"id":"solo","name":"Solo","sections":[{"passage":"p","questions":[{"stem":"q","choices":["A","B","C","D","E"],"correctChoice":1}]}]}`
	tests, err := ImportTests(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(tests) != 1 || tests[0].ID != "solo" {
		t.Fatalf("expected one test, got %+v", tests)
	}
	if tests[0].Type != TestTypeLR {
		t.Fatalf("expected default type LR, got %q", tests[0].Type)
	}
}
