/*
	Package ngstate provides types, constants, and functions that have no other dependencies
	and can be used by all packages within ngstate.  This includes logging, the error kinds
	returned by builders and parsers, normalization of arbitrary Go values into JSON-safe
	values, small vector types, and the numeric data types allowed in viewer documents.
*/
package ngstate
