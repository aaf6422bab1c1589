// Package executor runs individual steps and step groups: it evaluates
// guards, consults the result cache, binds callable parameters from the
// live output map, retries failures with exponential backoff, and
// materializes declared outputs.
package executor
