package docx

import "fmt"

// TemplateError reports a template that cannot be opened or parsed. It is
// fatal for a render: no output is produced.
type TemplateError struct {
	Path   string
	Detail string
	Err    error
}

func (e *TemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template %s: %s: %v", e.Path, e.Detail, e.Err)
	}
	return fmt.Sprintf("template %s: %s", e.Path, e.Detail)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// WriteError reports a failure to serialise or move the output document into
// place. No partial output is left at Path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
