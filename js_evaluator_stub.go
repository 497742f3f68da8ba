//go:build !js_eval

package layoutmap

// NewJSEvaluator is unavailable without the js_eval build tag and returns
// nil.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}

func isJSEvaluator(Evaluator) bool {
	return false
}
