package utils

// SafeDeref dereferences a string pointer, returning "" when nil. The SDK
// models most response fields as pointers.
func SafeDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
