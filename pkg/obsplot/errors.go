package obsplot

import "fmt"

// InvalidNamespaceError is returned when a call names a module other than
// "Plot" or "d3".
type InvalidNamespaceError struct {
	Namespace string
}

func (e *InvalidNamespaceError) Error() string {
	return fmt.Sprintf("Invalid module: %s", e.Namespace)
}

// UndefinedMethodError is returned when a known namespace has no method of
// the requested name.
type UndefinedMethodError struct {
	Namespace string
	Method    string
}

func (e *UndefinedMethodError) Error() string {
	return fmt.Sprintf("%s.%s is not defined", e.Namespace, e.Method)
}
