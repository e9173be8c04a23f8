package varref

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "source == missing", "workflow", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "source == missing" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Rule != "workflow" {
		t.Fatalf("expected rule metadata, got %q", evalErr.Rule)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", "task", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Rule != "task" {
		t.Fatalf("rule should be filled, got %q", existing.Rule)
	}
}

func TestWrapEvaluatorErrorKeepsPackageErrors(t *testing.T) {
	if err := wrapEvaluatorError("expr", ErrEmptyExpression); err != ErrEmptyExpression {
		t.Fatalf("expected package error returned as-is, got %v", err)
	}
	err := wrapEvaluatorError("cel", errors.New("bad"))
	if !strings.HasPrefix(err.Error(), "varref: cel evaluator:") {
		t.Fatalf("expected engine prefix, got %q", err.Error())
	}
}

func TestCatalogFetchErrorUnwraps(t *testing.T) {
	base := errors.New("connection refused")
	err := error(&CatalogFetchError{Err: base})
	if !errors.Is(err, base) {
		t.Fatalf("expected fetch error to unwrap")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected cause in message, got %q", err.Error())
	}
}

func TestAmbiguousShortIDErrorReportsChoice(t *testing.T) {
	err := &AmbiguousShortIDError{ShortID: "abc1", Candidates: []string{"abc123", "abc199"}}
	if err.Chosen() != "abc123" {
		t.Fatalf("expected first candidate chosen, got %q", err.Chosen())
	}
	if !strings.Contains(err.Error(), "matches 2 records") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var nilErr *AmbiguousShortIDError
	if nilErr.Chosen() != "" || nilErr.Error() != "<nil>" {
		t.Fatalf("expected nil-safe methods")
	}
}
