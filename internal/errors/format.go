package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI renders err for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := As(err)
	if !ok {
		ie = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ie.Message)
	if ie.Cause != nil && ie.Cause.Error() != ie.Message {
		fmt.Fprintf(&sb, "  Cause: %v\n", ie.Cause)
	}
	if ie.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ie.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ie.Code)
	return sb.String()
}

// Diagnostic is the one-line form printed for a skipped document.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	ie, ok := As(err)
	if !ok {
		return err.Error()
	}
	msg := ie.Message
	if ie.Cause != nil && ie.Cause.Error() != ie.Message {
		msg += ": " + ie.Cause.Error()
	}
	if p := ie.Details["path"]; p != "" {
		return fmt.Sprintf("%s: %s [%s]", p, msg, ie.Code)
	}
	return fmt.Sprintf("%s [%s]", msg, ie.Code)
}

// LogAttrs returns slog attributes describing err.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	ie, ok := As(err)
	if !ok {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", ie.Code),
		slog.String("error", ie.Message),
		slog.String("category", string(ie.Category)),
		slog.String("severity", string(ie.Severity)),
	}
	if ie.Cause != nil {
		attrs = append(attrs, slog.String("cause", ie.Cause.Error()))
	}

	keys := make([]string, 0, len(ie.Details))
	for k := range ie.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, ie.Details[k]))
	}
	return attrs
}
