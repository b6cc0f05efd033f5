/*
Copyright (C) 2026  The Lakedoc Authors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package errs defines the error kinds the lakedoc core surfaces to callers
// (see spec §7). Every exported entry point returns one of these, wrapped
// with context via fmt.Errorf("%w", ...).
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories in spec §7.
type Kind string

const (
	NotFound           Kind = "not_found"
	AlreadyExists      Kind = "already_exists"
	Conflict           Kind = "conflict"
	ReadOnly           Kind = "read_only"
	Invalid            Kind = "invalid"
	Corrupted          Kind = "corrupted"
	SchemaIncompatible Kind = "schema_incompatible"
	Cancelled          Kind = "cancelled"
	Transient          Kind = "transient"
)

// Subject narrows Invalid errors per spec §7: Invalid{collection|id|filter|...}.
type Subject string

const (
	SubjectCollection Subject = "collection"
	SubjectID         Subject = "id"
	SubjectFilter     Subject = "filter"
	SubjectUpdate     Subject = "update"
	SubjectData       Subject = "data"
	SubjectPipeline   Subject = "pipeline"
	SubjectLimit      Subject = "limit"
	SubjectSort       Subject = "sort"
	SubjectProject    Subject = "project"
	SubjectQuery      Subject = "query"
)

// Error is the concrete error type returned by lakedoc's public API.
type Error struct {
	Kind    Kind
	Subject Subject // only meaningful when Kind == Invalid
	Msg     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s{%s}: %s", e.Kind, e.Subject, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func Invalidf(subject Subject, format string, args ...interface{}) *Error {
	return &Error{Kind: Invalid, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
