package custom_errors

import "strings"

// ValidationError collects every problem found while building a
// configuration so they can be reported together.
type ValidationError struct {
	Errors []error `json:"errors"`
}

// Add records err. Nil errors are ignored.
func (c *ValidationError) Add(err error) {
	if err == nil {
		return
	}
	c.Errors = append(c.Errors, err)
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (c *ValidationError) Unwrap() []error {
	return c.Errors
}

func (c *ValidationError) Error() string {
	switch len(c.Errors) {
	case 0:
		return ""
	case 1:
		return "invalid configuration: " + c.Errors[0].Error()
	}
	msgs := make([]string, len(c.Errors))
	for i, err := range c.Errors {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}
