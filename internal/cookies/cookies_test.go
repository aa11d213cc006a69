package cookies

import (
	"net/url"
	"strings"
	"testing"
)

const sample = "# Netscape HTTP Cookie File\n" +
	".nicovideo.jp\tTRUE\t/\tTRUE\t2147483647\tuser_session\tuser_session_1_abc\n" +
	"www.nicovideo.jp\tFALSE\t/\tFALSE\t2147483647\tnicosid\t123.456\n"

func TestLoad(t *testing.T) {
	jar, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	u, _ := url.Parse("https://www.nicovideo.jp/watch/sm9")
	got := map[string]string{}
	for _, c := range jar.Cookies(u) {
		got[c.Name] = c.Value
	}
	if got["user_session"] != "user_session_1_abc" || got["nicosid"] != "123.456" {
		t.Fatalf("Cookies() = %v", got)
	}

	sub, _ := url.Parse("https://nvapi.nicovideo.jp/v1/users/me")
	subCookies := jar.Cookies(sub)
	if len(subCookies) != 1 || subCookies[0].Name != "user_session" {
		t.Fatalf("Cookies(nvapi) = %v, want only the domain cookie", subCookies)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(t.TempDir() + "/missing.txt"); err == nil {
		t.Fatalf("LoadFile() expected error")
	}
}
