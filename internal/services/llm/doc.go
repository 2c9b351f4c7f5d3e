// Package llm wraps the OpenRouter chat completion API used for product
// analysis, persona creation, and script generation. All requests demand
// JSON-only output; responses are sanitized before decoding because models
// occasionally wrap payloads in code fences or prose.
package llm
