// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Orchestrator runs one request end to end: it indexes the document
// and then hands each question to the Retriever and AnswerGenerator.
package services
