// Package apperr はアプリケーション全体のエラー分類を定義する。
// 各ドメイン・アプリケーション層はこの型でエラーを返し、HTTP層は
// パッケージごとに分岐せず一箇所でステータスコードへ変換する。
package apperr

import "fmt"

// Kind はエラーの種別を表す
type Kind string

const (
	ValidationFailed Kind = "VALIDATION_FAILED"
	EventNotFound    Kind = "EVENT_NOT_FOUND"
	NoTicketsAvail   Kind = "NO_TICKETS_AVAILABLE"
	LockUnavailable  Kind = "LOCK_UNAVAILABLE"
	Internal         Kind = "INTERNAL"
)

// Error はアプリケーション層で使われる具象エラー型
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is により errors.Is(err, apperr.New(apperr.EventNotFound, "")) のような
// Kind 単位の比較ができる
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(ValidationFailed, message) }

func NotFoundf(format string, args ...any) *Error {
	return New(EventNotFound, fmt.Sprintf(format, args...))
}

func NoTickets(message string) *Error { return New(NoTicketsAvail, message) }

func LockBusy(message string) *Error { return New(LockUnavailable, message) }

func InternalWrap(message string, cause error) *Error {
	return Wrap(Internal, message, cause)
}

// KindOf は err から Kind を取り出す。*Error でラップされていない場合は
// Internal を返す
func KindOf(err error) Kind {
	var appErr *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			appErr = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if appErr == nil {
		return Internal
	}
	return appErr.Kind
}
