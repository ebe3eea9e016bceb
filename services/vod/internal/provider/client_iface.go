package provider

import "context"

// VideoAPI is what the vod service needs from the hosting provider.
type VideoAPI interface {
	CreateVideo(ctx context.Context, title string) (VideoInfo, error)
	GetVideo(ctx context.Context, videoGUID string) (VideoInfo, error)
	DeleteVideo(ctx context.Context, videoGUID string) error
}
