// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// Every run needs all of these:
//
//   - Fetcher: Downloads a document with a size cap
//   - NormaliserRegistry: Extracts text from PDF, DOCX and EML bytes
//   - PostProcessorPipeline: Splits text into overlapping chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Namespaced vector storage and similarity search
//   - LLMService: Generates answers from retrieved context
//
// # Optional Interfaces
//
//   - PromptStore: Overrides the built-in answer prompts
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
