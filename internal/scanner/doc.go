// Package scanner walks a corpus root directory, computes per-file
// content hashes, extracts directory-hierarchy metadata, and upserts
// discovered files into the state store as untracked rows. The scanner
// never makes network calls and never mutates files on disk (spec
// §4.2).
package scanner
