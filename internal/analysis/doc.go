// Package analysis runs model-written analysis snippets against the sales
// table without a host interpreter.
//
// Snippets are written in a small pandas-flavoured language: assignments,
// expressions, indexing and calls on the table bound as df. Validate
// screens the source and parses it, Interpreter.Run evaluates the program
// and Normalize turns the value bound to result into a Result.
package analysis
