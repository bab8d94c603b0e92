// Package git reports the source revision of the project under test.
//
// The revision (commit, branch, dirty flag) is attached to run metadata and to
// coverage upload payloads. A project outside any repository yields an empty
// revision rather than an error.
package git
