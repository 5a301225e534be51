// Package pagination walks cursor-paginated listing endpoints.
//
// A listing page has the shape
//
//	{"results": [{"name": "cheri", "url": "https://api/berry/1/"}, ...], "next": "https://api/berry?offset=20"}
//
// and the last page carries "next": null. The Lister requests pages strictly one
// after another, following "next" until it is empty, and returns every
// descriptor in page-visit order.
//
// Example usage:
//
//	lister := pagination.NewLister(httpClient, pagination.DefaultConfig())
//	descriptors, err := lister.List(ctx, "https://pokeapi.co/api/v2/berry")
//
// The lister:
//   - Requests the next page only after the previous one is decoded
//   - Resolves relative "next" links against the current page URL
//   - Passes duplicate descriptors through unchanged
//   - Fails the whole listing on any rejected or undecodable page (ListingError),
//     including a body with no "results" array (ErrMalformedPage)
//   - Optionally stops runaway listings after Config.MaxPages pages
package pagination
