package sources

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var videoKeywords = []string{"video", "youtube", "vimeo", "movie", "clip", "watch", "transcript"}

// VideoAgent queries the YouTube Data API for video metadata and merges
// in any indexed transcript chunks.
type VideoAgent struct {
	config config.VideoConfig
	logger *log.Logger
	ingestor

	mu      sync.Mutex
	service *youtube.Service
}

func NewVideoAgent(cfg config.VideoConfig, in ingestor) *VideoAgent {
	return &VideoAgent{
		config:   cfg,
		logger:   log.New(log.Writer(), "[VIDEO] ", log.LstdFlags),
		ingestor: in,
	}
}

func (a *VideoAgent) Type() core.SourceType { return core.SourceVideo }

func (a *VideoAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return keywordRelevance(query, videoKeywords), nil
}

// youtubeService builds the API client on first use.
func (a *VideoAgent) youtubeService(ctx context.Context) (*youtube.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.service != nil {
		return a.service, nil
	}
	if a.config.YouTubeAPIKey == "" {
		return nil, fmt.Errorf("video: youtube api key not configured")
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(a.config.YouTubeAPIKey))
	if err != nil {
		return nil, fmt.Errorf("video: create youtube client: %w", err)
	}
	a.service = svc
	return svc, nil
}

func (a *VideoAgent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	var records []map[string]interface{}

	svc, err := a.youtubeService(ctx)
	if err != nil {
		a.logger.Printf("youtube unavailable, serving indexed chunks only: %v", err)
	} else {
		max := a.config.MaxResults
		if max <= 0 {
			max = int64(maxResults)
		}
		timeout := a.config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := svc.Search.List([]string{"snippet"}).Q(query).Type("video").MaxResults(max).Context(cctx).Do()
		cancel()
		if err != nil {
			return core.AgentResponse{}, fmt.Errorf("video: youtube search: %w", err)
		}
		for _, item := range resp.Items {
			if item.Id == nil || item.Snippet == nil {
				continue
			}
			videoURL := "https://www.youtube.com/watch?v=" + item.Id.VideoId
			records = append(records, map[string]interface{}{
				"title":       item.Snippet.Title,
				"description": item.Snippet.Description,
				"channel":     item.Snippet.ChannelTitle,
				"url":         videoURL,
				"published":   item.Snippet.PublishedAt,
			})
			a.ingest(item.Snippet.Title+"\n\n"+item.Snippet.Description, videoURL, string(core.SourceVideo), map[string]interface{}{
				"title":   item.Snippet.Title,
				"channel": item.Snippet.ChannelTitle,
			})
			if len(records) >= maxResults {
				break
			}
		}
	}

	if remaining := maxResults - len(records); remaining > 0 {
		records = append(records, a.searchIndexed(query, string(core.SourceVideo), remaining)...)
	}
	if records == nil {
		records = []map[string]interface{}{}
	}
	return core.AgentResponse{
		SourceType: core.SourceVideo,
		Success:    true,
		Data:       records,
	}, nil
}

func (a *VideoAgent) HealthCheck(ctx context.Context) (bool, error) {
	if a.config.YouTubeAPIKey == "" {
		return false, nil
	}
	if _, err := a.youtubeService(ctx); err != nil {
		return false, err
	}
	return true, nil
}
