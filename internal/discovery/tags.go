package discovery

import "context"

// TagSource returns descriptive tags for an artist name.
type TagSource interface {
	Tags(ctx context.Context, artist string) ([]string, error)
}

// FallbackTags asks Secondary whenever Primary fails or has nothing.
type FallbackTags struct {
	Primary   TagSource
	Secondary TagSource
}

func (f FallbackTags) Tags(ctx context.Context, artist string) ([]string, error) {
	tags, err := f.Primary.Tags(ctx, artist)
	if err == nil && len(tags) > 0 {
		return tags, nil
	}
	if f.Secondary == nil {
		return tags, err
	}
	if err != nil {
		log.WithError(err).WithField("artist", artist).Info("primary tag source failed, using fallback")
	}
	return f.Secondary.Tags(ctx, artist)
}
