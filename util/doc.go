// Package util provides small generic helpers shared across feedgate
// packages, such as size parsing and value coalescing.
package util
