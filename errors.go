package layoutmap

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("layoutmap: not found")
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("layoutmap: decode failed")
	// ErrFacade matches every *FacadeError.
	ErrFacade = errors.New("layoutmap: document facade failed")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("layoutmap: conflict")
	// ErrSuperseded reports a load that finished after a newer one started.
	ErrSuperseded = errors.New("layoutmap: load superseded")
	// ErrNotLoaded is returned by store helpers that must hand back what they
	// stored when the store has not been loaded and the edit was dropped.
	ErrNotLoaded = errors.New("layoutmap: store not loaded")
)

// Path addresses a location inside the mapping tree. Unused trailing parts
// are left at their zero value (-1 for indexes).
type Path struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
	ValueIndex      int
}

func mapPath(mapID string) Path {
	return Path{MapID: mapID, GroupIndex: -1, ValueIndex: -1}
}

func variablePath(mapID, imageVariableID string) Path {
	return Path{MapID: mapID, ImageVariableID: imageVariableID, GroupIndex: -1, ValueIndex: -1}
}

func groupPath(mapID, imageVariableID string, groupIndex int) Path {
	return Path{MapID: mapID, ImageVariableID: imageVariableID, GroupIndex: groupIndex, ValueIndex: -1}
}

func valuePath(mapID, imageVariableID string, groupIndex, valueIndex int) Path {
	return Path{MapID: mapID, ImageVariableID: imageVariableID, GroupIndex: groupIndex, ValueIndex: valueIndex}
}

func (p Path) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "map=%q", p.MapID)
	if p.ImageVariableID != "" {
		fmt.Fprintf(&b, " imageVariable=%q", p.ImageVariableID)
	}
	if p.GroupIndex >= 0 {
		fmt.Fprintf(&b, " group=%d", p.GroupIndex)
	}
	if p.ValueIndex >= 0 {
		fmt.Fprintf(&b, " value=%d", p.ValueIndex)
	}
	return b.String()
}

// NotFoundError reports a command path that does not resolve. Segment names
// the first part of Path that failed: "map", "imageVariable", "group",
// "value" or "variable".
type NotFoundError struct {
	Segment string
	Path    Path
	Detail  string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("layoutmap: %s not found at %s", e.Segment, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DecodeError reports a stored payload that is not a valid envelope. The raw
// payload is kept for diagnostics and is never repaired.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("layoutmap: decode envelope: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// FacadeError reports a failed call into the document facade.
type FacadeError struct {
	Op         string
	DocumentID string
	Err        error
}

func (e *FacadeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("layoutmap: facade %s document=%q: %v", e.Op, e.DocumentID, e.Err)
}

func (e *FacadeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *FacadeError) Is(target error) bool {
	return target == ErrFacade
}

// ConflictError reports an edit that would break a uniqueness rule, such as
// assigning a layout that already belongs to another map.
type ConflictError struct {
	Path   Path
	Reason string
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("layoutmap: conflict at %s: %s", e.Path, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func wrapFacadeError(op, documentID string, err error) error {
	if err == nil {
		return nil
	}
	var facadeErr *FacadeError
	if errors.As(err, &facadeErr) {
		return err
	}
	return &FacadeError{Op: op, DocumentID: documentID, Err: err}
}

// ErrorEntry is one reported error.
type ErrorEntry struct {
	Op         string
	Err        error
	OccurredAt time.Time
}

// ErrorLog collects reported errors for diagnostics. It is safe for
// concurrent use; the zero value is ready.
type ErrorLog struct {
	mu      sync.Mutex
	entries []ErrorEntry
	limit   int
}

// NewErrorLog keeps at most limit entries, dropping the oldest. A limit of
// zero keeps everything.
func NewErrorLog(limit int) *ErrorLog {
	return &ErrorLog{limit: limit}
}

// Record appends err; nil errors are ignored.
func (l *ErrorLog) Record(op string, err error) {
	if l == nil || err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ErrorEntry{Op: op, Err: err, OccurredAt: time.Now()})
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = append([]ErrorEntry(nil), l.entries[len(l.entries)-l.limit:]...)
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (l *ErrorLog) Entries() []ErrorEntry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ErrorEntry(nil), l.entries...)
}

// Len returns the number of recorded entries.
func (l *ErrorLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ErrInvalidCommand reports a command payload that can never apply, such as
// an empty id or a nil value.
var ErrInvalidCommand = errors.New("layoutmap: invalid command")

// ErrEmptyRule is reported for a blank match rule expression.
var ErrEmptyRule = errors.New("layoutmap: match rule is empty")

// Rule phases reported by EvaluationError.
const (
	PhaseCompile  = "compile"
	PhaseEvaluate = "evaluate"
)

// EvaluationError reports a match rule that failed to compile or to run
// against one dependent group. ImageVariableID and GroupIndex are only set
// in the evaluate phase.
type EvaluationError struct {
	Engine          string
	Expr            string
	Phase           string
	ImageVariableID string
	GroupIndex      int
	Err             error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Phase == PhaseCompile {
		return fmt.Sprintf("layoutmap: %s rule %q: compile: %v", e.Engine, e.Expr, e.Err)
	}
	return fmt.Sprintf("layoutmap: %s rule %q on %s: %v", e.Engine, e.Expr, e.Target(), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Target names the group under test as "imageVariable#group", or "" for
// compile failures.
func (e *EvaluationError) Target() string {
	if e == nil || e.Phase == PhaseCompile {
		return ""
	}
	return RuleContext{ImageVariableID: e.ImageVariableID, GroupIndex: e.GroupIndex}.label()
}

// compileError wraps err as a compile-phase EvaluationError. An error that
// already is one is returned untouched.
func compileError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{Engine: engine, Expr: expr, Phase: PhaseCompile, GroupIndex: -1, Err: err}
}

// ruleError wraps err as an evaluate-phase EvaluationError for the group in
// ctx. An existing EvaluationError keeps its engine and expression and only
// gains the missing location.
func ruleError(engine, expr string, ctx RuleContext, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Phase == "" {
			evalErr.Phase = PhaseEvaluate
		}
		if evalErr.Phase == PhaseEvaluate && evalErr.ImageVariableID == "" {
			evalErr.ImageVariableID = ctx.ImageVariableID
			evalErr.GroupIndex = ctx.GroupIndex
		}
		return err
	}
	return &EvaluationError{
		Engine:          engine,
		Expr:            expr,
		Phase:           PhaseEvaluate,
		ImageVariableID: ctx.ImageVariableID,
		GroupIndex:      ctx.GroupIndex,
		Err:             err,
	}
}
