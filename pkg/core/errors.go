package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrReadOnly          = errors.New("repository is in read-only mode")
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrClosed            = errors.New("closed")
)

// Classification sentinels. A *Error matches the sentinel of its Kind under errors.Is.
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidDocument = errors.New("invalid document")
	ErrPersistFailed   = errors.New("annotation persist failed")
	ErrLoadFailed      = errors.New("annotation load failed")
)

// ErrorKind classifies failures surfaced to the UI layer.
type ErrorKind int

const (
	KindFileNotFound ErrorKind = iota + 1
	KindInvalidDocument
	KindPersistFailed
	KindLoadFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindFileNotFound:
		return "FileNotFound"
	case KindInvalidDocument:
		return "InvalidDocument"
	case KindPersistFailed:
		return "AnnotationPersistFailed"
	case KindLoadFailed:
		return "AnnotationLoadFailed"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindFileNotFound:
		return ErrFileNotFound
	case KindInvalidDocument:
		return ErrInvalidDocument
	case KindPersistFailed:
		return ErrPersistFailed
	case KindLoadFailed:
		return ErrLoadFailed
	}
	return nil
}

// Error is a classified failure. Op names the operation ("save", "delete",
// "load", "open"), ID the annotation or document involved.
type Error struct {
	Kind ErrorKind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " (" + e.Op
		if e.ID != "" {
			msg += " " + e.ID
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the classification sentinel of e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// PersistFailed wraps err as KindPersistFailed. An err already classified
// as a persist failure is returned unchanged.
func PersistFailed(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistFailed) {
		return err
	}
	return &Error{Kind: KindPersistFailed, Op: op, ID: id, Err: err}
}

// LoadFailed wraps err as KindLoadFailed.
func LoadFailed(docID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLoadFailed) {
		return err
	}
	return &Error{Kind: KindLoadFailed, Op: "load", ID: docID, Err: err}
}

// Classify returns the ErrorKind of err, or 0 when err is unclassified.
func Classify(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrFileNotFound):
		return KindFileNotFound
	case errors.Is(err, ErrInvalidDocument):
		return KindInvalidDocument
	}
	return 0
}
