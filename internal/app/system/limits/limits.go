// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody bounds ordinary create/update payloads.
	MaxJSONBody = 64 << 10 // 64 KB

	// MaxReorderBody bounds link reorder payloads, which carry one id per link.
	MaxReorderBody = 256 << 10 // 256 KB

	// MaxReorderIDs caps how many ids one reorder request may list.
	MaxReorderIDs = 5000
)
