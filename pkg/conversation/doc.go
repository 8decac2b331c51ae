// Package conversation keeps the state of a chat conversation within the
// token budget of a model's context window.
//
// A Persona holds three counted message sequences:
// - the persona, a fixed system preamble sent first,
// - the history of user and assistant turns,
// - the instructions, a fixed system suffix sent after the history.
//
// GetAPIMessages computes what is actually sent, skipping the oldest history
// entries while the budget is exceeded, without changing the stored history.
// Condense applies the same oldest-first rule to the stored history and is the
// only operation that forgets messages. Respond runs one exchange against a
// types.Completer and restores the history exactly if the exchange fails.
package conversation
