// Package util provides small string and URL helpers shared by the server,
// storage and HTTP layers.
package util
