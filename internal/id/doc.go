// Package id generates identifiers for sandboxd records.
//
//   - UUID: random v4 UUIDs (github.com/google/uuid)
//   - Prefixed: short, typed IDs such as "spec_3f9a0c1d2b4e5f60" for records
//     users see in URLs
//   - Sortable: 26-character Crockford base32 IDs whose first 10 characters
//     encode the millisecond timestamp, used for analytics calls so that
//     lexical order follows arrival order
package id
