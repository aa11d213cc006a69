package downloader

import "net/http"

func applyRequestHeaders(req *http.Request, headers http.Header) {
	for k, vals := range headers {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}

// CookieHeader renders cookies as a single Cookie header value.
func CookieHeader(cookies []*http.Cookie) string {
	req := &http.Request{Header: http.Header{}}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req.Header.Get("Cookie")
}
