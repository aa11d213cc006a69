package nvapi

import (
	"encoding/json"
	"fmt"
)

// WatchMeta is the meta block of the watch page JSON envelope.
type WatchMeta struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
}

// WatchEnvelope is the top-level watch page response.
// ref: https://www.nicovideo.jp/watch/<video_id>?responseType=json
type WatchEnvelope struct {
	Meta WatchMeta `json:"meta"`
	Data struct {
		Metadata         WatchPageMetadata `json:"metadata"`
		GoogleTagManager json.RawMessage   `json:"googleTagManager"`
		Response         json.RawMessage   `json:"response"`
	} `json:"data"`
}

type WatchPageMetadata struct {
	Title string `json:"title"`
}

// WatchError is the structured error object returned instead of WatchData.
type WatchError struct {
	IsCustomError      bool   `json:"isCustomError"`
	StatusCode         int    `json:"statusCode"`
	ErrorCode          string `json:"errorCode"`
	ReasonCode         string `json:"reasonCode"`
	DeletedMessage     string `json:"deletedMessage"`
	CommunityLink      string `json:"communityLink"`
	PublishScheduledAt string `json:"publishScheduledAt"`
}

// WatchData is the watch-time snapshot of one video.
type WatchData struct {
	Client  WatchClient   `json:"client"`
	Comment WatchComment  `json:"comment"`
	Genre   *WatchGenre   `json:"genre"`
	Media   WatchMedia    `json:"media"`
	Owner   *WatchOwner   `json:"owner"`
	Channel *WatchChannel `json:"channel"`
	Payment WatchPayment  `json:"payment"`
	Series  *WatchSeries  `json:"series"`
	Video   WatchVideo    `json:"video"`
	Viewer  *WatchViewer  `json:"viewer"`

	OKReason string `json:"okReason"`
}

type WatchClient struct {
	Nicosid      string `json:"nicosid"`
	WatchID      string `json:"watchId"`
	WatchTrackID string `json:"watchTrackId"`
}

type WatchComment struct {
	Threads   []CommentThread `json:"threads"`
	NvComment NvComment       `json:"nvComment"`
}

type CommentThread struct {
	ID            int64  `json:"id"`
	Fork          int    `json:"fork"`
	ForkLabel     string `json:"forkLabel"`
	VideoID       string `json:"videoId"`
	IsActive      bool   `json:"isActive"`
	IsOwnerThread bool   `json:"isOwnerThread"`
	Label         string `json:"label"`
	Server        string `json:"server"`
}

// NvComment describes the thread server and the request parameters for
// the comment API.
type NvComment struct {
	ThreadKey string          `json:"threadKey"`
	Server    string          `json:"server"`
	Params    NvCommentParams `json:"params"`
}

type NvCommentParams struct {
	Targets  []NvCommentTarget `json:"targets"`
	Language string            `json:"language"`
}

type NvCommentTarget struct {
	ID   string `json:"id"`
	Fork string `json:"fork"`
}

type WatchGenre struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type WatchMedia struct {
	Domand   *Domand   `json:"domand"`
	Delivery *Delivery `json:"delivery"`
}

// Domand lists the HLS renditions and the key used to negotiate access rights.
type Domand struct {
	Videos                []DomandVideo `json:"videos"`
	Audios                []DomandAudio `json:"audios"`
	IsStoryboardAvailable bool          `json:"isStoryboardAvailable"`
	AccessRightKey        string        `json:"accessRightKey"`
}

type DomandVideo struct {
	ID                                  string `json:"id"`
	IsAvailable                         bool   `json:"isAvailable"`
	Label                               string `json:"label"`
	BitRate                             int    `json:"bitRate"`
	Width                               int    `json:"width"`
	Height                              int    `json:"height"`
	QualityLevel                        int    `json:"qualityLevel"`
	RecommendedHighestAudioQualityLevel int    `json:"recommendedHighestAudioQualityLevel"`
}

type DomandAudio struct {
	ID                 string          `json:"id"`
	IsAvailable        bool            `json:"isAvailable"`
	BitRate            int             `json:"bitRate"`
	SamplingRate       int             `json:"samplingRate"`
	IntegratedLoudness float64         `json:"integratedLoudness"`
	TruePeak           float64         `json:"truePeak"`
	QualityLevel       int             `json:"qualityLevel"`
	LoudnessCollection []AudioLoudness `json:"loudnessCollection"`
}

type AudioLoudness struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Delivery is the legacy progressive delivery block.
type Delivery struct {
	RecipeID string        `json:"recipeId"`
	Movie    DeliveryMovie `json:"movie"`
}

type DeliveryMovie struct {
	ContentID string          `json:"contentId"`
	Session   DeliverySession `json:"session"`
}

// DeliverySession carries everything needed to create a legacy delivery
// session with heartbeat keep-alive.
type DeliverySession struct {
	RecipeID          string            `json:"recipeId"`
	PlayerID          string            `json:"playerId"`
	Videos            []string          `json:"videos"`
	Audios            []string          `json:"audios"`
	Protocols         []string          `json:"protocols"`
	AuthTypes         map[string]string `json:"authTypes"`
	ServiceUserID     string            `json:"serviceUserId"`
	Token             string            `json:"token"`
	Signature         string            `json:"signature"`
	ContentID         string            `json:"contentId"`
	HeartbeatLifetime int64             `json:"heartbeatLifetime"`
	ContentKeyTimeout int64             `json:"contentKeyTimeout"`
	Priority          float64           `json:"priority"`
	URLs              []DeliveryURL     `json:"urls"`
}

type DeliveryURL struct {
	URL             string `json:"url"`
	IsWellKnownPort bool   `json:"isWellKnownPort"`
	IsSSL           bool   `json:"isSsl"`
}

type WatchOwner struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	IconURL  string `json:"iconUrl"`
}

type WatchChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type WatchPayment struct {
	Video struct {
		IsPpv               bool   `json:"isPpv"`
		IsAdmission         bool   `json:"isAdmission"`
		IsPremium           bool   `json:"isPremium"`
		WatchableUserType   string `json:"watchableUserType"`
		CommentableUserType string `json:"commentableUserType"`
		BillingType         string `json:"billingType"`
	} `json:"video"`
}

type WatchSeries struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type WatchVideo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Count       VideoCount `json:"count"`
	Duration    int        `json:"duration"`
	Thumbnail   struct {
		URL       string `json:"url"`
		MiddleURL string `json:"middleUrl"`
		LargeURL  string `json:"largeUrl"`
		Player    string `json:"player"`
		OGP       string `json:"ogp"`
	} `json:"thumbnail"`
	RegisteredAt             string `json:"registeredAt"`
	IsPrivate                bool   `json:"isPrivate"`
	IsDeleted                bool   `json:"isDeleted"`
	IsAuthenticationRequired bool   `json:"isAuthenticationRequired"`
}

type VideoCount struct {
	View    int64 `json:"view"`
	Comment int64 `json:"comment"`
	Mylist  int64 `json:"mylist"`
	Like    int64 `json:"like"`
}

type WatchViewer struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	IsPremium bool   `json:"isPremium"`
}

// Validate checks the fields the download and comment pipelines depend on.
func (w *WatchData) Validate() error {
	switch {
	case w.Client.WatchID == "":
		return fmt.Errorf("%w: client.watchId missing", ErrSchema)
	case w.Video.ID == "":
		return fmt.Errorf("%w: video.id missing", ErrSchema)
	}
	return nil
}

// DecodeWatch splits a watch page body into WatchData or WatchError.
// Exactly one of the returned pointers is non-nil when err is nil.
func DecodeWatch(body []byte, ok bool) (*WatchData, *WatchError, error) {
	var env WatchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if len(env.Data.Response) == 0 || string(env.Data.Response) == "null" {
		return nil, nil, fmt.Errorf("%w: data.response missing", ErrSchema)
	}
	if !ok {
		var werr WatchError
		if err := json.Unmarshal(env.Data.Response, &werr); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		return nil, &werr, nil
	}
	var data WatchData
	if err := json.Unmarshal(env.Data.Response, &data); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := data.Validate(); err != nil {
		return nil, nil, err
	}
	return &data, nil, nil
}

// Storyboard is the storyboard manifest served behind the storyboard access right.
type Storyboard struct {
	Columns         int               `json:"columns"`
	Images          []StoryboardImage `json:"images"`
	Interval        int               `json:"interval"`
	Rows            int               `json:"rows"`
	ThumbnailHeight int               `json:"thumbnailHeight"`
	ThumbnailWidth  int               `json:"thumbnailWidth"`
	Version         string            `json:"version"`
}

type StoryboardImage struct {
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url"`
}
