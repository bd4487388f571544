// Package external holds clients for the upstream services the pipeline reads from:
// the SNPedia MediaWiki API and NCBI PubMed E-utilities, plus page caching.
package external

import "github.com/snpedia-variant-pipeline/internal/domain"

var (
	_ domain.PageFetcher      = (*SNPediaClient)(nil)
	_ domain.CitationEnricher = (*PubMedClient)(nil)

	_ PageCache = (*MemoryPageCache)(nil)
	_ PageCache = (*RedisPageCache)(nil)
	_ PageCache = (*TieredPageCache)(nil)
)
