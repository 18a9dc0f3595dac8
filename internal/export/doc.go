// Package export writes captured images and templates to files.
//
// PNG is encoded locally. WSQ, FIR, FMR and the IBSM formats go through the
// matcher engine, which may report them unsupported.
package export
