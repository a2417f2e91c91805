package postgres

import "fmt"

// placeholder returns the positional parameter for the given 1-based index.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
