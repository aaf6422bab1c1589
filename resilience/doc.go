// Package resilience provides retry with exponential backoff for step
// execution. Backoff sleeps are context-aware so a stop request or
// deadline interrupts the wait immediately.
package resilience
