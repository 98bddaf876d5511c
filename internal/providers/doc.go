// Package providers talks to text-generation backends on behalf of the
// audit engine.
//
// A Generator performs exactly one request against one backend: Ollama's
// native generate API (the default, for locally hosted models), any
// OpenAI-compatible chat endpoint such as LM Studio or vLLM, Google Gemini,
// or Anthropic. Generators classify failures but never retry.
//
// Client wraps a Generator with the policy the engine relies on: a timeout
// per attempt, a small number of retries with exponential back-off for
// transient failures (timeouts, refused connections, 5xx and 429 responses,
// empty or malformed bodies), and rejection of empty answers. Authentication
// and other 4xx errors fail immediately. Client has no knowledge of caching.
//
// Use [New] to obtain a Generator by backend name.
package providers
