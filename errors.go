package structpack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/structpack/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// Schema construction failures. These surface once, when a schema is
	// built, and are never retried.
	CodeUnsupportedType = "unsupported_type"
	CodeMissingOption   = "missing_option"
	CodeInheritMissing  = "inherit_missing"
	CodeBadFormat       = "bad_format"

	// Per-operation failures. The buffer accumulated so far is undefined
	// and must be discarded by the caller.
	CodeLengthLookup   = "length_lookup"
	CodeLengthOverflow = "length_overflow"
	CodeTruncated      = "truncated"
	CodeInvalidValue   = "invalid_value"
	CodePathLookup     = "path_lookup"

	// Union state.
	CodeValueNotActive = "value_not_active"
	CodeSelectorMap    = "selector_map"
)

// ErrIncompatibleType is the internal dispatch signal used while creating a
// field: each field kind is tried in order and reports incompatibility with
// this sentinel until one accepts the declared type. It must never escape
// NewField, which converts exhaustion into an unsupported_type issue.
var ErrIncompatibleType = errors.New("structpack: field kind does not implement declared type")

// Issue represents a single failure entry.
type Issue struct {
	Path    string // slash path into the value tree (for example: /hdr/msg_len).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints.
	Cause   error  // Optional: underlying error.
	// Params carries structured parameters (e.g., {"max":32, "got":34})
	// for i18n and observability.
	Params map[string]any
}

// Issues is a collection of failures that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. length_overflow at /msg
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// issueAt builds a one-element Issues with a translated message. Params are
// flattened to strings for the translator and kept structured on the Issue.
func issueAt(path, code string, cause error, params map[string]any) Issues {
	var data map[string]string
	if len(params) > 0 {
		data = make(map[string]string, len(params))
		for k, v := range params {
			data[k] = fmt.Sprint(v)
		}
	}
	return Issues{Issue{
		Path:    path,
		Code:    code,
		Message: i18n.T(code, data),
		Cause:   cause,
		Params:  params,
	}}
}

// IsCode reports whether err carries at least one issue with the given code.
func IsCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}
