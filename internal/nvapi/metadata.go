package nvapi

// EssentialVideo is the compact video record shared by list endpoints.
type EssentialVideo struct {
	Type                 string     `json:"type"`
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	RegisteredAt         string     `json:"registeredAt"`
	Count                VideoCount `json:"count"`
	Thumbnail            Thumbnail  `json:"thumbnail"`
	Duration             int        `json:"duration"`
	ShortDescription     string     `json:"shortDescription"`
	LatestCommentSummary string     `json:"latestCommentSummary"`
	IsChannelVideo       bool       `json:"isChannelVideo"`
	IsPaymentRequired    bool       `json:"isPaymentRequired"`
	PlaybackPosition     *float64   `json:"playbackPosition"`
	Owner                Owner      `json:"owner"`
}

type Thumbnail struct {
	URL        string `json:"url"`
	MiddleURL  string `json:"middleUrl"`
	LargeURL   string `json:"largeUrl"`
	ListingURL string `json:"listingUrl"`
	NHdURL     string `json:"nHdUrl"`
}

type Owner struct {
	OwnerType  string `json:"ownerType"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	IconURL    string `json:"iconUrl"`
}

// VideosData ref: /v1/videos?watchIds=<video_id>
type VideosData struct {
	Items []struct {
		WatchID string         `json:"watchId"`
		Video   EssentialVideo `json:"video"`
	} `json:"items"`
}

type Tag struct {
	Name                   string `json:"name"`
	IsLocked               bool   `json:"isLocked"`
	IsLockedBySystem       bool   `json:"isLockedBySystem"`
	IsNicodicArticleExists bool   `json:"isNicodicArticleExists"`
}

// TagsData ref: /v1/videos/<video_id>/tags
type TagsData struct {
	IsLockable       bool   `json:"isLockable"`
	IsEditable       bool   `json:"isEditable"`
	UneditableReason string `json:"uneditableReason"`
	Tags             []Tag  `json:"tags"`
}

type MylistItem struct {
	ItemID      int64          `json:"itemId"`
	WatchID     string         `json:"watchId"`
	Description string         `json:"description"`
	AddedAt     string         `json:"addedAt"`
	Status      string         `json:"status"`
	Video       EssentialVideo `json:"video"`
}

type Mylist struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	DefaultSortKey   string       `json:"defaultSortKey"`
	DefaultSortOrder string       `json:"defaultSortOrder"`
	Items            []MylistItem `json:"items"`
	TotalItemCount   int          `json:"totalItemCount"`
	HasNext          bool         `json:"hasNext"`
	IsPublic         bool         `json:"isPublic"`
	Owner            Owner        `json:"owner"`
	FollowerCount    int          `json:"followerCount"`
}

// MylistData ref: /v2/mylists/<mylist_id>
type MylistData struct {
	Mylist Mylist `json:"mylist"`
}

type SeriesDetail struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	IsListed     bool   `json:"isListed"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// SeriesData ref: /v1/series/<series_id>
type SeriesData struct {
	Detail     SeriesDetail `json:"detail"`
	TotalCount int          `json:"totalCount"`
	Items      []struct {
		Meta struct {
			ID    string `json:"id"`
			Order int    `json:"order"`
		} `json:"meta"`
		Video EssentialVideo `json:"video"`
	} `json:"items"`
}

type HistoryItem struct {
	FrontendID       int            `json:"frontendId"`
	LastViewedAt     string         `json:"lastViewedAt"`
	PlaybackPosition float64        `json:"playbackPosition"`
	Video            EssentialVideo `json:"video"`
	Views            int            `json:"views"`
	WatchID          string         `json:"watchId"`
}

// HistoryData ref: /v1/users/me/watch/history
type HistoryData struct {
	Items      []HistoryItem `json:"items"`
	TotalCount int           `json:"totalCount"`
}

type Genre struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// GenresData ref: /v2/genres
type GenresData struct {
	Genres []Genre `json:"genres"`
}

// PopularTagsData ref: /v1/genres/<genre_key>/popular-tags
type PopularTagsData struct {
	StartAt string   `json:"startAt"`
	Tags    []string `json:"tags"`
}

// RankingData ref: /v1/ranking/genre/<genre_key>
type RankingData struct {
	Items   []EssentialVideo `json:"items"`
	HasNext bool             `json:"hasNext"`
}

// VideoSearchData ref: /v2/search/video
type VideoSearchData struct {
	SearchID   string           `json:"searchId"`
	Keyword    string           `json:"keyword"`
	Tag        string           `json:"tag"`
	TotalCount int              `json:"totalCount"`
	HasNext    bool             `json:"hasNext"`
	Items      []EssentialVideo `json:"items"`
}

// User ref: /v1/users/<user_id>
type User struct {
	ID            int64  `json:"id"`
	Nickname      string `json:"nickname"`
	Description   string `json:"description"`
	IsPremium     bool   `json:"isPremium"`
	FolloweeCount int    `json:"followeeCount"`
	FollowerCount int    `json:"followerCount"`
	UserLevel     struct {
		CurrentLevel int `json:"currentLevel"`
	} `json:"userLevel"`
	Icons struct {
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"icons"`
}

// UserData wraps the user object of /v1/users/<user_id>.
type UserData struct {
	User User `json:"user"`
}

// UserVideosData ref: /v3/users/<user_id>/videos
type UserVideosData struct {
	Items []struct {
		Essential EssentialVideo `json:"essential"`
	} `json:"items"`
	TotalCount int `json:"totalCount"`
}

// Channel ref: https://public-api.ch.nicovideo.jp/v2/open/channels/<channel_id>
type Channel struct {
	ID     int64 `json:"id"`
	Status struct {
		IsOpen               bool `json:"isOpen"`
		IsAdmissionAvailable bool `json:"isAdmissionAvailable"`
		IsAdultChannel       bool `json:"isAdultChannel"`
	} `json:"status"`
	Configuration struct {
		Basic struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			ScreenName  string `json:"screenName"`
			OwnerName   string `json:"ownerName"`
		} `json:"basic"`
	} `json:"configuration"`
	Location struct {
		URL          string `json:"url"`
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"location"`
}
