package mermaidcheck

import "testing"

func TestValidate_OK(t *testing.T) {
	ok, errText := Validate("graph TD\n  A[Start] --> B{Is it valid?}\n  B -->|Yes| C[Ship it]")
	if !ok {
		t.Fatalf("expected ok, got error: %q", errText)
	}
}

func TestValidate_EmptyBlock(t *testing.T) {
	ok, errText := Validate("   \n  ")
	if ok {
		t.Fatal("expected empty block to fail")
	}
	if errText == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestValidate_UnrecognizedDiagramType(t *testing.T) {
	ok, _ := Validate("notADiagram\n  A --> B")
	if ok {
		t.Fatal("expected unrecognized diagram type to fail")
	}
}

func TestValidate_UnclosedBracket(t *testing.T) {
	ok, errText := Validate("graph TD\n  A[Start --> B[End]")
	if ok {
		t.Fatal("expected unclosed bracket to fail")
	}
	if errText == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestValidate_MismatchedBracket(t *testing.T) {
	ok, _ := Validate("graph TD\n  A(Start] --> B")
	if ok {
		t.Fatal("expected mismatched bracket types to fail")
	}
}

func TestValidate_SequenceDiagram(t *testing.T) {
	ok, errText := Validate("sequenceDiagram\n  Alice->>Bob: Hello Bob")
	if !ok {
		t.Fatalf("expected ok, got error: %q", errText)
	}
}
