//go:build !js_eval

package varref

// NewJSEvaluator returns nil without the js_eval build tag. Rules asking for
// the js engine are skipped with a logged ErrNoEvaluator.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
