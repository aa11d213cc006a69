package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/famomatic/nicov1/internal/nvapi"
)

// getAPI performs a GET against a metadata endpoint and decodes its data block.
func getAPI[T any](ctx context.Context, c *Client, ep nvapi.Endpoint, query url.Values, args ...string) (*T, error) {
	if ep.LoginRequired {
		if err := c.requireLogin(); err != nil {
			return nil, err
		}
	}
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.get(ctx, ep.URL(c.bases(), query, args...), nil)
	if err != nil {
		return nil, err
	}
	data, err := nvapi.Decode[T](resp.Body, resp.StatusCode, ep.WantStatus)
	if err != nil {
		return nil, apiErrorFrom(ep.Name, err)
	}
	return data, nil
}

// PageQuery pages through list endpoints. Zero fields use the endpoint default.
type PageQuery struct {
	PageSize int
	Page     int
}

func (p PageQuery) values(defaultSize int) url.Values {
	q := url.Values{}
	size, page := p.PageSize, p.Page
	if size <= 0 {
		size = defaultSize
	}
	if page <= 0 {
		page = 1
	}
	q.Set("pageSize", strconv.Itoa(size))
	q.Set("page", strconv.Itoa(page))
	return q
}

// MylistQuery pages a mylist. Empty sort fields use the mylist's own order.
type MylistQuery struct {
	PageQuery
	SortKey   string
	SortOrder string
}

// RankingQuery selects a genre ranking page.
type RankingQuery struct {
	PageQuery
	// Term is one of hour, 24h, week, month, total. Default 24h.
	Term              string
	Tag               string
	SensitiveContents string
}

// VideoSearchQuery searches by keyword or by tag; exactly one must be set.
type VideoSearchQuery struct {
	PageQuery
	Keyword   string
	Tag       string
	SortKey   string // default "hot"
	SortOrder string // default "none"
}

// UserVideosQuery pages a user's uploads.
type UserVideosQuery struct {
	PageQuery
	SortKey           string // default "registeredAt"
	SortOrder         string // default "asc"
	SensitiveContents string
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty %s id", ErrInvalidInput, kind)
	}
	return nil
}

// GetVideo returns the compact record of one video.
func (c *Client) GetVideo(ctx context.Context, input string) (*Video, error) {
	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("watchIds", videoID)
	data, err := getAPI[nvapi.VideosData](ctx, c, nvapi.Videos, q)
	if err != nil {
		return nil, err
	}
	for _, item := range data.Items {
		if item.WatchID == videoID || item.Video.ID == videoID {
			v := item.Video
			return &v, nil
		}
	}
	return nil, &APIError{Op: nvapi.Videos.Name, Reason: "video " + videoID + " not listed"}
}

// GetVideoTags returns the tags of a video.
func (c *Client) GetVideoTags(ctx context.Context, input string) ([]Tag, error) {
	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	data, err := getAPI[nvapi.TagsData](ctx, c, nvapi.VideoTags, nil, videoID)
	if err != nil {
		return nil, err
	}
	return data.Tags, nil
}

// GetMylist returns one page of a public mylist.
func (c *Client) GetMylist(ctx context.Context, mylistID string, query MylistQuery) (*Mylist, error) {
	if err := requireID("mylist", mylistID); err != nil {
		return nil, err
	}
	q := query.values(20)
	setIf(q, "sortKey", query.SortKey)
	setIf(q, "sortOrder", query.SortOrder)
	data, err := getAPI[nvapi.MylistData](ctx, c, nvapi.MylistByID, q, mylistID)
	if err != nil {
		return nil, err
	}
	return &data.Mylist, nil
}

// GetSeries returns one page of a series.
func (c *Client) GetSeries(ctx context.Context, seriesID string, query PageQuery) (*Series, error) {
	if err := requireID("series", seriesID); err != nil {
		return nil, err
	}
	return getAPI[nvapi.SeriesData](ctx, c, nvapi.SeriesByID, query.values(100), seriesID)
}

// GetWatchHistory returns the logged-in user's watch history.
func (c *Client) GetWatchHistory(ctx context.Context, query PageQuery) (*WatchHistory, error) {
	return getAPI[nvapi.HistoryData](ctx, c, nvapi.History, query.values(100))
}

// GetGenres lists the ranking genres.
func (c *Client) GetGenres(ctx context.Context) ([]Genre, error) {
	data, err := getAPI[nvapi.GenresData](ctx, c, nvapi.Genres, nil)
	if err != nil {
		return nil, err
	}
	return data.Genres, nil
}

// GetPopularTags lists the popular tags of a genre.
func (c *Client) GetPopularTags(ctx context.Context, genre string) ([]string, error) {
	if err := requireID("genre", genre); err != nil {
		return nil, err
	}
	data, err := getAPI[nvapi.PopularTagsData](ctx, c, nvapi.PopularTags, nil, genre)
	if err != nil {
		return nil, err
	}
	return data.Tags, nil
}

// GetRanking returns one page of a genre ranking.
func (c *Client) GetRanking(ctx context.Context, genre string, query RankingQuery) (*Ranking, error) {
	if err := requireID("genre", genre); err != nil {
		return nil, err
	}
	q := query.values(100)
	q.Set("term", orDefault(query.Term, "24h"))
	setIf(q, "tag", query.Tag)
	setIf(q, "sensitiveContents", query.SensitiveContents)
	return getAPI[nvapi.RankingData](ctx, c, nvapi.Ranking, q, genre)
}

// SearchVideos searches videos by keyword or tag.
func (c *Client) SearchVideos(ctx context.Context, query VideoSearchQuery) (*VideoSearchPage, error) {
	if (query.Keyword == "") == (query.Tag == "") {
		return nil, fmt.Errorf("%w: exactly one of keyword or tag is required", ErrInvalidInput)
	}
	q := query.values(25)
	setIf(q, "keyword", query.Keyword)
	setIf(q, "tag", query.Tag)
	q.Set("sortKey", orDefault(query.SortKey, "hot"))
	q.Set("sortOrder", orDefault(query.SortOrder, "none"))
	return getAPI[nvapi.VideoSearchData](ctx, c, nvapi.SearchVideo, q)
}

// GetUser returns a user profile.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	data, err := getAPI[nvapi.UserData](ctx, c, nvapi.UserByID, nil, userID)
	if err != nil {
		return nil, err
	}
	return &data.User, nil
}

// GetUserVideos returns one page of a user's uploads.
func (c *Client) GetUserVideos(ctx context.Context, userID string, query UserVideosQuery) (*UserVideos, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	q := query.values(30)
	q.Set("sortKey", orDefault(query.SortKey, "registeredAt"))
	q.Set("sortOrder", orDefault(query.SortOrder, "asc"))
	setIf(q, "sensitiveContents", query.SensitiveContents)
	return getAPI[nvapi.UserVideosData](ctx, c, nvapi.UserVideos, q, userID)
}

// GetChannel returns a channel; ids are accepted with or without the "ch" prefix.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	id := strings.TrimPrefix(strings.TrimSpace(channelID), "ch")
	if err := requireID("channel", id); err != nil {
		return nil, err
	}
	return getAPI[nvapi.Channel](ctx, c, nvapi.ChannelByID, nil, id)
}
