// Package errors provides the error taxonomy for isakit.
// Every failure raised while reading, building, emitting or ingesting a
// bundle carries a Kind, the operation that failed and, where it applies,
// the file path and 1-based row/column coordinates of the offending cell.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Op represents an operation name for error context.
type Op string

// Pos locates an error inside a file. Row and Col are 1-based; zero means
// unknown. Other is the second row involved, used by InconsistentNode.
type Pos struct {
	Path  string
	Row   int
	Col   int
	Other int
}

func (p Pos) String() string {
	if p.Path == "" && p.Row == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Path)
	if p.Row > 0 {
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(p.Row))
		if p.Col > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(p.Col))
		}
	}
	return b.String()
}

// Error represents an application error with context.
type Error struct {
	Op   Op     // Operation that failed
	Kind Kind   // Category of error
	Pos  Pos    // Location in the input, if any
	Err  error  // Underlying error
	Msg  string // Additional context message
}

// Kind represents the category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvestigationMissing
	KindInvestigationAmbiguous
	KindUnknownHeader
	KindUnclassifiedModifier
	KindOrphanAttribute
	KindRaggedRow
	KindDisconnectedRow
	KindInconsistentNode
	KindUnresolvedReference
	KindCycle
	KindSchemaViolation
	KindIO
	KindMalformedSection
	KindMalformedDocument
	KindConfig
	KindDatabase
	KindSearch
	KindSubprocess
	KindUsage
)

var kindNames = map[Kind]string{
	KindInvestigationMissing:   "investigation-missing",
	KindInvestigationAmbiguous: "investigation-ambiguous",
	KindUnknownHeader:          "unknown-header",
	KindUnclassifiedModifier:   "unclassified-modifier",
	KindOrphanAttribute:        "orphan-attribute",
	KindRaggedRow:              "ragged-row",
	KindDisconnectedRow:        "disconnected-row",
	KindInconsistentNode:       "inconsistent-node",
	KindUnresolvedReference:    "unresolved-reference",
	KindCycle:                  "cycle",
	KindSchemaViolation:        "schema-violation",
	KindIO:                     "io",
	KindMalformedSection:       "malformed-section",
	KindMalformedDocument:      "malformed-document",
	KindConfig:                 "config",
	KindDatabase:               "database",
	KindSearch:                 "search",
	KindSubprocess:             "subprocess",
	KindUsage:                  "usage",
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if pos := e.Pos.String(); pos != "" {
		b.WriteString(pos)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given arguments.
// Arguments can be: Op, Kind, Pos, error, string (message).
// A nested *Error without its own position lends its position to the new error.
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case Pos:
			e.Pos = a
		case error:
			e.Err = a
		case string:
			e.Msg = a
		}
	}
	if e.Kind == KindUnknown && e.Err != nil {
		e.Kind = GetKind(e.Err)
	}
	return e
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(op Op, kind Kind, pos Pos, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with an operation name for context.
// The kind of a wrapped *Error is preserved.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Err: err}
}

// WrapMsg wraps an error with an operation name and message.
func WrapMsg(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Msg: msg, Err: err}
}

// IO wraps a filesystem failure with the path it concerned.
func IO(op Op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindIO, Pos: Pos{Path: path}, Err: err}
}

// IsKind checks if an error, or any error it wraps, is of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// GetKind returns the kind of an error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if !stderrors.As(err, &e) {
		return KindUnknown
	}
	return e.Kind
}

// GetPos returns the innermost known position of an error.
func GetPos(err error) Pos {
	var pos Pos
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			break
		}
		if e.Pos.Path != "" || e.Pos.Row > 0 {
			pos = e.Pos
		}
		err = e.Err
	}
	return pos
}

// UserError reports whether err was caused by bad input rather than a bug
// or an environment failure. The CLI maps user errors to exit status 1 and
// everything else to 2.
func UserError(err error) bool {
	switch GetKind(err) {
	case KindInvestigationMissing, KindInvestigationAmbiguous, KindUnknownHeader,
		KindUnclassifiedModifier, KindOrphanAttribute, KindRaggedRow,
		KindDisconnectedRow, KindInconsistentNode, KindUnresolvedReference,
		KindCycle, KindMalformedSection, KindMalformedDocument, KindSchemaViolation,
		KindConfig, KindUsage:
		return true
	case KindIO:
		return true
	}
	return false
}

// IgnoreError explicitly ignores an error with a reason.
// This documents that the error is intentionally ignored.
//
// Example:
//
//	errors.IgnoreError(logger, file.Close(), "cleanup during error recovery")
func IgnoreError(logger *slog.Logger, err error, reason string) {
	if err != nil && logger != nil {
		logger.Debug("ignoring error", "reason", reason, "error", err)
	}
}
