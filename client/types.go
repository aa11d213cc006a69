package client

import (
	"github.com/famomatic/nicov1/internal/comments"
	"github.com/famomatic/nicov1/internal/downloader"
	"github.com/famomatic/nicov1/internal/nvapi"
)

// WatchSession is the immutable watch-time snapshot of one video.
// Re-fetch with GetWatchData to refresh it.
type WatchSession = nvapi.WatchData

// Comment is one comment record; Thread and Fork are filled by backfills.
type Comment = nvapi.Comment

// CommentData is one page returned by the comment API.
type CommentData = nvapi.CommentData

// Storyboard is the storyboard manifest.
type Storyboard = nvapi.Storyboard

// Progress reports bytes written so far; Total is zero when unknown.
type Progress = downloader.Progress

// Comment backfill results.
type (
	ForkResult       = comments.Thread
	BackfillResult   = comments.Result
	BackfillPage     = comments.Page
	CommentWatermark = comments.Watermark
)

// Metadata results.
type (
	Video           = nvapi.EssentialVideo
	Tag             = nvapi.Tag
	Mylist          = nvapi.Mylist
	Series          = nvapi.SeriesData
	WatchHistory    = nvapi.HistoryData
	Genre           = nvapi.Genre
	Ranking         = nvapi.RankingData
	VideoSearchPage = nvapi.VideoSearchData
	User            = nvapi.User
	UserVideos      = nvapi.UserVideosData
	Channel         = nvapi.Channel
)
