package client

import "net/http"

// Static header tables sent with API requests.
var (
	getHeaders = map[string]string{
		"User-Agent":         "niconico.py",
		"X-Frontend-Id":      "6",
		"X-Frontend-Version": "0",
	}
	postHeaders = map[string]string{
		"User-Agent":          "niconico.py",
		"X-Frontend-Id":       "6",
		"X-Frontend-Version":  "0",
		"X-Niconico-Language": "ja-jp",
		"X-Client-Os-Type":    "others",
		"X-Request-With":      "https://www.nicovideo.jp",
		"Referer":             "https://www.nicovideo.jp/",
	}
)

func headerTable(method string) map[string]string {
	if method == http.MethodGet || method == http.MethodHead {
		return getHeaders
	}
	return postHeaders
}
