// internal/app/system/limits/limits.go
package limits

// Request body size limits for the screen routes.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxActionFormSize caps a row action or refresh form. Action forms
	// carry a handful of short fields.
	MaxActionFormSize = 64 << 10 // 64 KB

	// MaxBatchFormSize caps a batch request, including an uploaded keys
	// file.
	MaxBatchFormSize = 5 << 20 // 5 MB
)
