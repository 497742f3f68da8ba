package layoutmap

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultRegexTimeout bounds a single regex transform.
const DefaultRegexTimeout = 100 * time.Millisecond

// Transformer applies transform chains to variable values. Regex patterns use
// ECMAScript syntax so rules authored for the browser behave the same here.
// Compiled patterns are cached; the zero value is not usable, see
// NewTransformer.
type Transformer struct {
	timeout  time.Duration
	mu       sync.RWMutex
	patterns map[string]*regexp2.Regexp
}

func NewTransformer(timeout time.Duration) *Transformer {
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	return &Transformer{timeout: timeout, patterns: map[string]*regexp2.Regexp{}}
}

// Apply runs transforms over value in order. Plain replacements touch the
// first occurrence unless ReplaceAll is set; regex replacements likewise.
// An empty Find leaves the value alone.
func (t *Transformer) Apply(value string, transforms []TransformCommand) (string, error) {
	for i, cmd := range transforms {
		next, err := t.applyOne(value, cmd)
		if err != nil {
			return "", fmt.Errorf("layoutmap: transform %d: %w", i, err)
		}
		value = next
	}
	return value, nil
}

func (t *Transformer) applyOne(value string, cmd TransformCommand) (string, error) {
	if cmd.Find == "" {
		return value, nil
	}
	if !cmd.Regex {
		if cmd.ReplaceAll {
			return strings.ReplaceAll(value, cmd.Find, cmd.Replace), nil
		}
		return strings.Replace(value, cmd.Find, cmd.Replace, 1), nil
	}

	re, err := t.pattern(cmd.Find)
	if err != nil {
		return "", err
	}
	count := 1
	if cmd.ReplaceAll {
		count = -1
	}
	return re.Replace(value, cmd.Replace, -1, count)
}

func (t *Transformer) pattern(expr string) (*regexp2.Regexp, error) {
	t.mu.RLock()
	re, ok := t.patterns[expr]
	t.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp2.Compile(expr, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	re.MatchTimeout = t.timeout

	t.mu.Lock()
	t.patterns[expr] = re
	t.mu.Unlock()
	return re, nil
}
