// Package quantmind turns unstructured research content into a persistent,
// queryable knowledge base of enriched items.
//
// The core is a content-processing pipeline over a durable local store:
//
//	Source → Parser → Enricher (LLM flow / tagger) → Storage
//
// glued together by a typed configuration layer with plugin registries, a
// template-driven prompt engine with retry-wrapped LLM invocation, and an
// indexed content-addressable file store with O(1) lookup and self-healing
// indexes.
//
// # Packages
//
//	import (
//	    "github.com/quantmind/quantmind/pkg/config"   // typed configs, Setting loader, registries
//	    "github.com/quantmind/quantmind/pkg/sources"  // arXiv source
//	    "github.com/quantmind/quantmind/pkg/parsers"  // PDF text extraction
//	    "github.com/quantmind/quantmind/pkg/flow"     // summary and podcast flows
//	    "github.com/quantmind/quantmind/pkg/tagger"   // LLM tagger
//	    "github.com/quantmind/quantmind/pkg/storage"  // indexed local storage
//	    "github.com/quantmind/quantmind/pkg/llm"      // provider-agnostic LLM block
//	)
//
// # Configuration
//
// Everything is driven by a YAML Setting with ${ENV} substitution:
//
//	source:  { type: arxiv, config: { query: "cat:q-fin.CP", max_results: 10 } }
//	parser:  { type: pdf }
//	tagger:  { type: llm }
//	storage: { type: local, config: { storage_dir: ./data } }
//	flows:
//	  summarize:
//	    type: summary
//	    config: { chunk_size: 2000 }
//	llm: { model: gpt-4o, api_key: "${OPENAI_API_KEY}" }
//	log_level: INFO
//
// Component and flow types resolve through process-wide registries, so
// user packages can register their own flow configs and chunkers at init
// time.
package quantmind
