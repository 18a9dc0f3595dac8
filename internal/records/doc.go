// Package records persists enrolled users and their templates in SQLite.
//
// Names are the unique key and are NFC-normalized before use. Match scores a
// probe template against every entry through a TemplateMatcher and returns
// the best non-zero match.
package records
