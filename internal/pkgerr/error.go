// Package pkgerr defines the unified error-kind taxonomy shared by every
// core subsystem: name validation, repository fetch, install-backend
// mutation, and dependency planning all report failures through the same
// Error type so callers can switch on Kind instead of parsing messages.
package pkgerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of failure carried by an Error.
type Kind int

const (
	// KindNameInvalid signals that pkgname.New rejected a string.
	KindNameInvalid Kind = iota
	// KindValidRepoNotFound signals that no remote returned a requested file.
	KindValidRepoNotFound
	// KindPackageNotFound signals a syntactically valid name absent from
	// every configured remote.
	KindPackageNotFound
	// KindRepoCacheNotFound signals an installed head-file that verifies
	// against no pinned remote key.
	KindRepoCacheNotFound
	// KindRepoPathInvalid signals a remote URL with no host component.
	KindRepoPathInvalid
	// KindProtectedPackage signals an uninstall targeting a protected name.
	KindProtectedPackage
	// KindMissingPermissions signals a filesystem mutation that failed with
	// permission denied.
	KindMissingPermissions
	// KindDownload signals an underlying download failure
	// (timeout/status/transport).
	KindDownload
	// KindIO signals any other local I/O failure.
	KindIO
	// KindParse signals a manifest that failed to parse.
	KindParse
	// KindRecursion signals a dependency graph that exceeded the recursion
	// budget.
	KindRecursion
	// KindDependencyInvalid signals that one or more of a package's
	// dependencies failed to resolve.
	KindDependencyInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNameInvalid:
		return "NameInvalid"
	case KindValidRepoNotFound:
		return "ValidRepoNotFound"
	case KindPackageNotFound:
		return "PackageNotFound"
	case KindRepoCacheNotFound:
		return "RepoCacheNotFound"
	case KindRepoPathInvalid:
		return "RepoPathInvalid"
	case KindProtectedPackage:
		return "ProtectedPackage"
	case KindMissingPermissions:
		return "MissingPermissions"
	case KindDownload:
		return "Download"
	case KindIO:
		return "IO"
	case KindParse:
		return "Parse"
	case KindRecursion:
		return "Recursion"
	case KindDependencyInvalid:
		return "DependencyInvalid"
	default:
		return "Unknown"
	}
}

// Error is the unified error type returned by every core subsystem.
type Error struct {
	Kind    Kind
	Subject string // package name, url, path, or similar context
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Subject != "" {
			return fmt.Sprintf("%s(%s): %v", e.Kind, e.Subject, e.Cause)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Subject)
	}
	return e.Kind.String()
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no subject or wrapped cause.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Newf builds an Error with a subject, formatted like fmt.Sprintf.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Subject: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and subject to an existing error, preserving it as the
// cause via github.com/pkg/errors so a stack trace is retained.
func Wrap(kind Kind, subject string, cause error) *Error {
	if cause == nil {
		return &Error{Kind: kind, Subject: subject}
	}
	return &Error{Kind: kind, Subject: subject, Cause: errors.WithStack(cause)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of err if it is a *Error, and ok=true.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}
