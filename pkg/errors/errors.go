// Package errors annotates errors with where they passed through.
//
//	if err != nil {
//		return xe.Wrap(err)
//	}
//
// Messages are chains of hops, like
//
//	@ github.com/opst/modelfab/pkg/domain/history.(*Service).Apply "/.../history.go" l120 <- @ ... <- version is stale
//
// Annotated errors unwrap to their cause, so errors.Is and errors.As work as usual.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Frame is the place where an error is annotated.
type Frame struct {
	Func string
	File string
	Line int
}

func (f Frame) String() string {
	return fmt.Sprintf(`@ %s "%s" l%d`, f.Func, f.File, f.Line)
}

func caller(skip int) Frame {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Frame{Func: "(unknown func)", File: "?", Line: -1}
	}
	f := Frame{Func: "(unknown func)", File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		f.Func = fn.Name()
	}
	return f
}

type ErrWithCaller struct {
	Frame
	note string
	err  error
}

func (e *ErrWithCaller) Line() int {
	return e.Frame.Line
}

func (e *ErrWithCaller) Error() string {
	if e.note != "" {
		return fmt.Sprintf("%s (%s) <- %s", e.Frame, e.note, e.err)
	}
	return fmt.Sprintf("%s <- %s", e.Frame, e.err)
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

// New is errors.New annotated with the caller.
func New(text string) error {
	return &ErrWithCaller{Frame: caller(1), err: errors.New(text)}
}

// Wrap annotates err with the caller. Wrap(nil) is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &ErrWithCaller{Frame: caller(1), err: err}
}

// WrapWithNote is Wrap with a note shown next to the place.
func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrWithCaller{Frame: caller(1), note: note, err: err}
}
