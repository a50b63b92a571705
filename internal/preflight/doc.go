// Package preflight provides readiness checks for the binaries and
// filesystem paths markad depends on.
//
// These checks run in two contexts:
//   - "markad analyze" calls RunAll before decoding; a failed check aborts
//     the run before any marks file is touched.
//   - "markad check" prints every check, including optional ones, as a table.
package preflight
