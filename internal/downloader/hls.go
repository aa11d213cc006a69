package downloader

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

var (
	// ErrNoVariant is returned when a master playlist has no usable variant.
	ErrNoVariant = errors.New("hls: no playable variant")
	// ErrUnsupportedKey is returned for encryption methods other than AES-128.
	ErrUnsupportedKey = errors.New("hls: unsupported key method")
)

// Track kinds returned by Resolve.
const (
	TrackVideo = "video"
	TrackAudio = "audio"
)

// Track is one media playlist to fetch.
type Track struct {
	Kind string
	URL  string
}

// HLS fetches HLS playlists segment by segment in-process.
type HLS struct {
	Client    *http.Client
	Headers   http.Header
	Transport TransportConfig
}

func (h *HLS) client() *http.Client {
	if h.Client == nil {
		return http.DefaultClient
	}
	return h.Client
}

// Resolve loads playlistURL. A master playlist yields the highest-bandwidth
// variant and, when that variant names an audio group, the group's rendition.
// A media playlist yields itself.
func (h *HLS) Resolve(ctx context.Context, playlistURL string) ([]Track, error) {
	playlist, listType, err := h.decode(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	if listType == m3u8.MEDIA {
		return []Track{{Kind: TrackVideo, URL: playlistURL}}, nil
	}
	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, ErrNoVariant
	}

	var best *m3u8.Variant
	var alternatives []*m3u8.Alternative
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		// the decoder attaches EXT-X-MEDIA entries to the first following variant only
		alternatives = append(alternatives, v.Alternatives...)
		if v.Iframe || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return nil, ErrNoVariant
	}
	tracks := []Track{{Kind: TrackVideo, URL: resolveURL(playlistURL, best.URI)}}
	if alt := pickAudio(alternatives, best.Audio); alt != nil {
		tracks = append(tracks, Track{Kind: TrackAudio, URL: resolveURL(playlistURL, alt.URI)})
	}
	return tracks, nil
}

func pickAudio(alternatives []*m3u8.Alternative, group string) *m3u8.Alternative {
	if group == "" {
		return nil
	}
	var found *m3u8.Alternative
	for _, alt := range alternatives {
		if alt == nil || alt.URI == "" || alt.GroupId != group || !strings.EqualFold(alt.Type, "AUDIO") {
			continue
		}
		if alt.Default {
			return alt
		}
		if found == nil {
			found = alt
		}
	}
	return found
}

// FetchTrack writes every segment of the media playlist at rawURL to w in
// order, decrypting AES-128 segments. Progress is cumulative from base.
func (h *HLS) FetchTrack(ctx context.Context, rawURL string, w io.Writer, base int64, onProgress ProgressFunc) (int64, error) {
	playlist, listType, err := h.decode(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if listType != m3u8.MEDIA || !ok {
		return 0, fmt.Errorf("hls: %s is not a media playlist", rawURL)
	}

	// the decoder attaches each EXT-X-KEY to the segment that follows it
	keys := make(map[string][]byte)
	var key *m3u8.Key
	initMap := media.Map
	var writtenMap string
	var written int64
	for i, seg := range media.Segments {
		if seg == nil {
			break
		}
		if seg.Key != nil {
			key = seg.Key
		}
		if seg.Map != nil {
			initMap = seg.Map
		}
		if initMap != nil && initMap.URI != writtenMap {
			data, err := h.fetchRange(ctx, resolveURL(rawURL, initMap.URI), initMap.Offset, initMap.Limit)
			if err != nil {
				return written, fmt.Errorf("hls: init segment: %w", err)
			}
			if _, err := w.Write(data); err != nil {
				return written, err
			}
			written += int64(len(data))
			writtenMap = initMap.URI
		}

		data, err := h.fetchRange(ctx, resolveURL(rawURL, seg.URI), seg.Offset, seg.Limit)
		if err != nil {
			return written, fmt.Errorf("hls: segment %d: %w", i, err)
		}
		if key != nil && key.Method != "" && key.Method != "NONE" {
			data, err = h.decrypt(ctx, rawURL, key, seg.SeqId, keys, data)
			if err != nil {
				return written, fmt.Errorf("hls: segment %d: %w", i, err)
			}
		}
		if _, err := w.Write(data); err != nil {
			return written, err
		}
		written += int64(len(data))
		onProgress.report(base+written, 0)
	}
	return written, nil
}

func (h *HLS) decode(ctx context.Context, rawURL string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := getBytes(ctx, h.client(), rawURL, h.Headers, h.Transport)
	if err != nil {
		return nil, 0, err
	}
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, 0, fmt.Errorf("hls: parse %s: %w", rawURL, err)
	}
	return playlist, listType, nil
}

func (h *HLS) fetchRange(ctx context.Context, rawURL string, offset, limit int64) ([]byte, error) {
	if limit <= 0 {
		return getBytes(ctx, h.client(), rawURL, h.Headers, h.Transport)
	}
	headers := h.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+limit-1))
	resp, err := do(ctx, h.client(), http.MethodGet, rawURL, headers, h.Transport, http.StatusOK, http.StatusPartialContent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (h *HLS) decrypt(ctx context.Context, playlistURL string, key *m3u8.Key, seq uint64, cache map[string][]byte, data []byte) ([]byte, error) {
	if key.Method != "AES-128" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, key.Method)
	}
	keyURL := resolveURL(playlistURL, key.URI)
	secret, ok := cache[keyURL]
	if !ok {
		var err error
		secret, err = getBytes(ctx, h.client(), keyURL, h.Headers, h.Transport)
		if err != nil {
			return nil, fmt.Errorf("fetch key: %w", err)
		}
		cache[keyURL] = secret
	}
	iv, err := segmentIV(key.IV, seq)
	if err != nil {
		return nil, err
	}
	return decryptAES128(secret, iv, data)
}

// segmentIV parses an explicit IV or derives it from the media sequence number.
func segmentIV(raw string, seq uint64) ([]byte, error) {
	if raw == "" {
		iv := make([]byte, aes.BlockSize)
		binary.BigEndian.PutUint64(iv[8:], seq)
		return iv, nil
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	iv, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid IV: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	return iv, nil
}

func decryptAES128(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return data, nil
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted data not block aligned")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	padding := int(out[len(out)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(out) {
		return nil, fmt.Errorf("invalid padding")
	}
	return out[:len(out)-padding], nil
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
