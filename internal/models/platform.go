package models

// Platform identifies the origin social network of a post or account.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformBluesky   Platform = "bluesky"
	PlatformMastodon  Platform = "mastodon"
	PlatformRSS       Platform = "rss"
	PlatformDemo      Platform = "demo"
)

// AllPlatforms lists every platform the aggregator knows how to talk to.
var AllPlatforms = []Platform{
	PlatformInstagram,
	PlatformTikTok,
	PlatformYouTube,
	PlatformBluesky,
	PlatformMastodon,
	PlatformRSS,
	PlatformDemo,
}

// Valid reports whether p is a known platform identifier.
func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// MediaType classifies an attachment on a post.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
	MediaAudio MediaType = "audio"
)
