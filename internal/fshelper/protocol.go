// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package fshelper implements the privileged filesystem helper: a loopback
// UDP daemon that performs link and directory operations on behalf of an
// unprivileged client, and the client that talks to it.
package fshelper

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"unicode"

	"github.com/janderssonse/nvmw/internal/domain"
)

// MaxRequestSize is the longest request the daemon acts on. It stays
// below the largest IPv4 UDP payload.
const MaxRequestSize = 60 * 1024

// BufferSize is the read buffer of either side. A datagram that fills it
// was truncated by the kernel.
const BufferSize = MaxRequestSize + 1

var errTooLong = errors.New("request too long")

// Request commands.
const (
	CmdDeleteDir         = "DELETE_DIR"
	CmdCreateDir         = "CREATE_DIR"
	CmdCreateSymlinkDir  = "CREATE_SYMLINK_DIR"
	CmdCreateSymlinkFile = "CREATE_SYMLINK_FILE"
	CmdDeleteFile        = "DELETE_FILE"
)

// Response suffixes and tokens.
const (
	suffixYes    = "_YES"
	suffixNo     = "_NO"
	suffixExists = "_EXISTS"

	RespUnknown = "Unknown command"

	TagPermission = "ERR_PERMISSION"
	TagNotFound   = "ERR_NOT_FOUND"
	TagExists     = "ERR_EXISTS"
	TagIO         = "ERR_IO"
	TagInvalid    = "ERR_INVALID"
)

var errMalformed = errors.New("malformed request")

// Kind classifies a helper response.
type Kind int

// Response kinds.
const (
	KindOk Kind = iota
	KindAlreadyExists
	KindNotFound
	KindPermissionDenied
	KindIoError
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindAlreadyExists:
		return "already-exists"
	case KindNotFound:
		return "not-found"
	case KindPermissionDenied:
		return "permission-denied"
	case KindIoError:
		return "io-error"
	case KindInvalidRequest:
		return "invalid-request"
	default:
		return "unknown"
	}
}

// Result is a decoded helper response.
type Result struct {
	Kind   Kind
	Detail string
}

// Err converts the result into an error wrapping the matching domain
// sentinel. KindOk yields nil.
func (r Result) Err() error {
	var sentinel error

	switch r.Kind {
	case KindOk:
		return nil
	case KindAlreadyExists:
		sentinel = domain.ErrAlreadyExists
	case KindNotFound:
		sentinel = domain.ErrPathMissing
	case KindPermissionDenied:
		sentinel = domain.ErrPermissionDenied
	default:
		sentinel = domain.ErrHelper
	}

	if r.Detail == "" {
		return fmt.Errorf("%w (%s)", sentinel, r.Kind)
	}

	return fmt.Errorf("%w: %s", sentinel, r.Detail)
}

// Encode builds a request line. Arguments that are empty or contain
// whitespace or quotes are Go-quoted.
func Encode(command string, args ...string) string {
	var b strings.Builder

	b.WriteString(command)

	for _, arg := range args {
		b.WriteByte(' ')

		if needsQuote(arg) {
			b.WriteString(strconv.Quote(arg))
		} else {
			b.WriteString(arg)
		}
	}

	return b.String()
}

func needsQuote(s string) bool {
	return s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"'
	})
}

// Tokenize splits a request line on spaces. A token starting with a double
// quote runs to its closing quote and is unquoted.
func Tokenize(line string) ([]string, error) {
	var tokens []string

	rest := strings.TrimSpace(line)
	for rest != "" {
		if rest[0] == '"' {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errMalformed, err)
			}

			token, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errMalformed, err)
			}

			tokens = append(tokens, token)
			rest = rest[len(quoted):]

			if rest != "" && rest[0] != ' ' {
				return nil, fmt.Errorf("%w: text after closing quote", errMalformed)
			}
		} else {
			end := strings.IndexByte(rest, ' ')
			if end < 0 {
				end = len(rest)
			}

			tokens = append(tokens, rest[:end])
			rest = rest[end:]
		}

		rest = strings.TrimLeft(rest, " ")
	}

	return tokens, nil
}

// Decode interprets the response to command.
func Decode(command, response string) Result {
	response = strings.TrimSpace(response)

	tag, detail, _ := strings.Cut(response, " ")

	switch tag {
	case TagPermission:
		return Result{Kind: KindPermissionDenied, Detail: detail}
	case TagNotFound:
		return Result{Kind: KindNotFound, Detail: detail}
	case TagExists:
		return Result{Kind: KindAlreadyExists, Detail: detail}
	case TagIO:
		return Result{Kind: KindIoError, Detail: detail}
	case TagInvalid:
		return Result{Kind: KindInvalidRequest, Detail: detail}
	}

	switch response {
	case command + suffixYes:
		return Result{Kind: KindOk}
	case command + suffixExists:
		return Result{Kind: KindAlreadyExists, Detail: command}
	case command + suffixNo:
		if command == CmdCreateSymlinkDir || command == CmdCreateSymlinkFile {
			return Result{Kind: KindInvalidRequest, Detail: "missing link target"}
		}

		return Result{Kind: KindNotFound, Detail: command}
	case RespUnknown:
		return Result{Kind: KindInvalidRequest, Detail: RespUnknown}
	default:
		return Result{Kind: KindIoError, Detail: fmt.Sprintf("unexpected response %q", response)}
	}
}

// errorResponse tags a filesystem error for the wire.
func errorResponse(err error) string {
	tag := TagIO

	switch {
	case errors.Is(err, fs.ErrPermission):
		tag = TagPermission
	case errors.Is(err, fs.ErrNotExist):
		tag = TagNotFound
	case errors.Is(err, fs.ErrExist):
		tag = TagExists
	}

	return tag + " " + err.Error()
}
