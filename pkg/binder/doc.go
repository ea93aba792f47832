// Package binder fills request structs from JSON bodies, chi path parameters
// and URL query strings. Binders are composable: each only touches the fields
// carrying its own tag.
package binder
