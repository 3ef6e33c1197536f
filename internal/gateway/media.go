package gateway

import (
	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/storage"
)

// AvatarURL resolves the profile's avatar, cache-busted by the media version.
// Without an avatar it returns the placeholder.
func AvatarURL(g Gateway, p api.Profile) string {
	return mediaURL(g, p.AvatarKey, p.MediaVersion, storage.AvatarPlaceholder)
}

// BannerURL is AvatarURL for the banner image.
func BannerURL(g Gateway, p api.Profile) string {
	return mediaURL(g, p.BannerKey, p.MediaVersion, storage.BannerPlaceholder)
}

func mediaURL(g Gateway, key string, version int64, placeholder string) string {
	if key == "" {
		return placeholder
	}
	url := g.PublicURL(key)
	if version == 0 {
		return url
	}
	return storage.CacheBusted(url, version)
}
