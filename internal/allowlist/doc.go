// Package allowlist fetches the set of device IDs the display may show.
//
// The list is requested once at startup from a REST endpoint with a static
// bearer token. Fetching is best effort: any failure yields an empty list,
// and an empty list admits every device.
package allowlist
