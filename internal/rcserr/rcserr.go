// Package rcserr defines the error kinds used across the versioning
// engine, following the same spirit as the teacher's
// dedis/tlc/go/lib/fs/verst package: predicates (IsNotExist, IsExist,
// ...) rather than scattering errno comparisons through call sites.
package rcserr

import "syscall"

// Kind identifies one of the error categories named by the spec.
type Kind int

const (
	_ Kind = iota
	NoSuchEntry
	AlreadyExists
	NotADirectory
	IsADirectory
	NotEmpty
	InvalidArgument
	PermissionDenied
	Range
	CrossDevice
	OutOfMemory
	IOError
)

// Error wraps a Kind with an optional underlying I/O error for
// io-error and a human-readable message for everything else.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "chmod", "purge"
	Path string // virtual path involved, if any
	Err  error  // underlying error, mainly for IOError
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errno maps the error Kind to the syscall errno a POSIX caller
// expects back, so the FUSE adapter can translate mechanically at one
// boundary instead of re-deriving it at every callback.
func (e *Error) Errno() syscall.Errno {
	return e.Kind.Errno()
}

func (k Kind) String() string {
	switch k {
	case NoSuchEntry:
		return "no such entry"
	case AlreadyExists:
		return "already exists"
	case NotADirectory:
		return "not a directory"
	case IsADirectory:
		return "is a directory"
	case NotEmpty:
		return "not empty"
	case InvalidArgument:
		return "invalid argument"
	case PermissionDenied:
		return "permission denied"
	case Range:
		return "range"
	case CrossDevice:
		return "cross-device link"
	case OutOfMemory:
		return "out of memory"
	case IOError:
		return "io error"
	default:
		return "unknown error"
	}
}

// Errno maps a Kind directly to its syscall errno.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case NoSuchEntry:
		return syscall.ENOENT
	case AlreadyExists:
		return syscall.EEXIST
	case NotADirectory:
		return syscall.ENOTDIR
	case IsADirectory:
		return syscall.EISDIR
	case NotEmpty:
		return syscall.ENOTEMPTY
	case InvalidArgument:
		return syscall.EINVAL
	case PermissionDenied:
		return syscall.EPERM
	case Range:
		return syscall.ERANGE
	case CrossDevice:
		return syscall.EXDEV
	case OutOfMemory:
		return syscall.ENOMEM
	case IOError:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

// New builds an *Error of the given kind.
func New(kind Kind, op, path string) *Error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// Wrap builds an IOError carrying the underlying error verbatim, used
// when the resolver or engine must propagate a host I/O failure.
func Wrap(op, path string, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: IOError, Op: op, Path: path, Err: err}
}

// Is reports whether err carries the given Kind, supporting
// errors.Is-style comparisons without requiring callers to import the
// errors package at every call site.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
