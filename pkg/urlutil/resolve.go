package urlutil

import "net/url"

// Resolve turns a discovered reference (absolute or relative, as authored in
// the DOM and already parsed by the sanitizer) into an absolute URL against
// the page it was found on. If ref is already absolute it is returned
// unchanged; otherwise it is resolved against pageURL's scheme, host, and
// path per RFC 3986 reference resolution.
func Resolve(ref url.URL, pageURL url.URL) url.URL {
	if ref.IsAbs() {
		return ref
	}
	resolved := pageURL.ResolveReference(&ref)
	return *resolved
}

// FilterByHost returns the subset of urls whose Host matches host exactly.
// It is used to enforce the same-origin boundary of a crawl: links pointing
// off-host are discovered but never admitted to the frontier.
func FilterByHost(host string, urls []url.URL) []url.URL {
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if u.Host == host {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
