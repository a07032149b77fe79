// Package crawler implements the traversal engine of pagewalk.
//
// # Components
//
//   - Extractor: turns a page body into the ordered list of in-scope links
//   - Registry: the visited set, with an atomic Claim used as the only
//     deduplication gate before a fetch
//   - frontier: a shared LIFO work stack with completion tracking
//   - Engine: runs N workers over the frontier
//
// # Traversal
//
// The frontier is a stack and the children of a page are pushed in reverse
// document order, so with a single worker the crawl visits pages in the same
// depth-first order as a recursive walk. With more workers the order is
// unspecified; persisted results are sorted anyway.
//
// Every URL is fetched at most once per run. Claim marks a URL before the
// request is issued; when the crawl is stopped mid-fetch the claim is
// released and nothing is recorded, so a resumed run fetches it again.
//
// # Usage
//
//	reg := crawler.NewRegistry(loaded)
//	eng := crawler.NewEngine(sc, f, crawler.WithWorkers(4))
//	stats, err := eng.Run(ctx, reg, []string{sc.BaseURL()})
package crawler
