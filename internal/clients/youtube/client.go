// Package youtube looks up video titles and durations through the YouTube Data API.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/textutil"
)

// Config configures the Data API client.
type Config struct {
	APIKey string
	// Endpoint overrides the API base URL; empty uses Google's.
	Endpoint string
	Timeout  time.Duration
}

// MetadataCache is satisfied by cache.JSON[models.VideoMetadata].
type MetadataCache interface {
	Get(ctx context.Context, key string) (*models.VideoMetadata, error)
	Set(ctx context.Context, key string, v *models.VideoMetadata) error
}

// Client fetches snippet and contentDetails for one video at a time. Calls go through a
// circuit breaker so a failing API does not slow every job down.
type Client struct {
	svc     *yt.Service
	breaker *gobreaker.CircuitBreaker
	cache   MetadataCache
	timeout time.Duration
	logger  logrus.FieldLogger
}

func NewClient(ctx context.Context, cfg Config, cache MetadataCache, logger logrus.FieldLogger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube API key must not be empty")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "youtube-data-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("[YouTube Client] circuit breaker state changed")
		},
	})

	return &Client{svc: svc, breaker: breaker, cache: cache, timeout: cfg.Timeout, logger: logger}, nil
}

// Lookup returns nil, nil when the API does not know the video.
func (c *Client) Lookup(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	log := c.logger.WithField("video_id", videoID)
	if c.cache != nil {
		if meta, err := c.cache.Get(ctx, videoID); err != nil {
			log.WithError(err).Warn("[YouTube Client] metadata cache read failed")
		} else if meta != nil {
			log.Debug("[YouTube Client] metadata cache hit")
			return meta, nil
		}
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, videoID)
	})
	if err != nil {
		return nil, fmt.Errorf("youtube lookup %s: %w", videoID, err)
	}
	meta, _ := res.(*models.VideoMetadata)
	if meta == nil {
		log.Info("[YouTube Client] video not found")
		return nil, nil
	}
	log.WithFields(logrus.Fields{"title": meta.Title, "duration": meta.DurationSeconds}).Info("[YouTube Client] metadata fetched")

	if c.cache != nil {
		if err := c.cache.Set(ctx, videoID, meta); err != nil {
			log.WithError(err).Warn("[YouTube Client] metadata cache write failed")
		}
	}
	return meta, nil
}

func (c *Client) fetch(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]
	meta := &models.VideoMetadata{VideoID: videoID}
	if item.Snippet != nil {
		meta.Title = item.Snippet.Title
	}
	if item.ContentDetails != nil {
		if secs, ok := textutil.ParseISODuration(item.ContentDetails.Duration); ok {
			meta.DurationSeconds = secs
		}
	}
	return meta, nil
}
