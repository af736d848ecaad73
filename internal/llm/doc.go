// Package llm provides the external language-model integration for
// transaction classification: provider clients, the compact batch
// prompt codec, pacing between batch dispatches, and the bounded batch
// classifier that degrades to fallback results on any provider failure.
package llm
