// Package normalisers provides implementations of the Normaliser interface
// for the supported document formats. Each normaliser knows how to extract
// text content from one format.
//
// Normalisers are registered with a Registry at startup; the Registry
// dispatches on the format classified by the fetcher.
package normalisers
