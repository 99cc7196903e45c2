// Package sanitizer provides input normalization functions for fleet and
// account data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Phone numbers: Convert to E.164 format (+[country][number])
//   - Emails: Lowercase and trim
//   - Makes and models: Collapse whitespace, trim, lowercase - "  Toyota " becomes "toyota"
//   - Free text search terms: escape regex metacharacters before they reach a query
//   - Numbers: Clamp to valid ranges
package sanitizer
