package varref

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCatalogNotConfigured is reported when a registry has no catalog.
	ErrCatalogNotConfigured = errors.New("varref: catalog not configured")
	// ErrEmptyExpression is returned when a rule expression is blank.
	ErrEmptyExpression = errors.New("varref: expression must not be empty")
	// ErrNoEvaluator is returned when an expression rule has no evaluator.
	ErrNoEvaluator = errors.New("varref: evaluator not available")
)

// CatalogFetchError wraps a failure to retrieve or decode the variable
// catalog. Registries log it and fall back to the last known records.
type CatalogFetchError struct {
	Err error
}

func (e *CatalogFetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("varref: catalog fetch failed: %v", e.Err)
}

func (e *CatalogFetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AmbiguousShortIDError reports a short id that prefixes more than one
// record id. The first record in catalog order is used.
type AmbiguousShortIDError struct {
	ShortID    string
	Candidates []string
}

func (e *AmbiguousShortIDError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("varref: short id %q matches %d records (%s), using %s",
		e.ShortID, len(e.Candidates), strings.Join(e.Candidates, ", "), e.Chosen())
}

// Chosen returns the record id the lookup settled on.
func (e *AmbiguousShortIDError) Chosen() string {
	if e == nil || len(e.Candidates) == 0 {
		return ""
	}
	return e.Candidates[0]
}

// MalformedMarkupError reports HTML that could not be parsed. Extraction
// falls back to tag stripping.
type MalformedMarkupError struct {
	Err error
}

func (e *MalformedMarkupError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("varref: malformed markup: %v", e.Err)
}

func (e *MalformedMarkupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Rule   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("varref: %s evaluator %s rule=%s: %v", e.Engine, describeExpression(e.Expr), e.Rule, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "varref:") {
		return err
	}
	return fmt.Errorf("varref: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, rule string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Rule == "" {
			evalErr.Rule = rule
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Rule:   rule,
		Err:    err,
	}
}
