package linkextract

import "net/url"

// DiscoveredLink is an absolute, fragment-stripped URL found on a crawled
// page, classified by how it was referenced.
type DiscoveredLink struct {
	URL  url.URL
	Kind LinkKind
}

func NewDiscoveredLink(u url.URL, kind LinkKind) DiscoveredLink {
	return DiscoveredLink{URL: u, Kind: kind}
}

type LinkKind string

const (
	KindNavigation LinkKind = "navigation"
	KindImage      LinkKind = "image"
	KindAnchor     LinkKind = "anchor"
)
