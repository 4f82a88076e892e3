package domain

import (
	"fmt"
	"strings"
)

// SchemaError reports an input table whose layout cannot be interpreted.
type SchemaError struct {
	Source  string
	Reason  string
	Columns []string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("%s: schema error: %s", e.Source, e.Reason)
	if len(e.Columns) > 0 {
		msg += " [" + strings.Join(e.Columns, ", ") + "]"
	}
	return msg
}

// NotFoundError reports a missing input.
type NotFoundError struct {
	Source string
	Path   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Source, e.Path)
}
