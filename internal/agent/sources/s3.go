package sources

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var s3Keywords = []string{"s3", "bucket", "aws", "cloud storage", "object", "blob"}

// S3Agent lists objects under the configured prefixes, indexes the
// text-like ones and answers searches from the indexed chunks.
type S3Agent struct {
	config      config.S3Config
	maxObjSize  int64
	logger      *log.Logger
	ingestor
	refresh refreshState

	mu     sync.Mutex
	client *s3.Client
}

func NewS3Agent(cfg config.S3Config, maxObjSize int64, in ingestor, refreshInterval time.Duration) *S3Agent {
	return &S3Agent{
		config:     cfg,
		maxObjSize: maxObjSize,
		logger:     log.New(log.Writer(), "[S3] ", log.LstdFlags),
		ingestor:   in,
		refresh:    refreshState{interval: refreshInterval},
	}
}

func (a *S3Agent) Type() core.SourceType { return core.SourceS3 }

func (a *S3Agent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return keywordRelevance(query, s3Keywords), nil
}

func (a *S3Agent) s3Client(ctx context.Context) (*s3.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	if a.config.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.config.Region))
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	a.client = s3.NewFromConfig(awsCfg)
	return a.client, nil
}

func (a *S3Agent) textObject(key string) bool {
	ext := strings.ToLower(filepath.Ext(key))
	for _, want := range a.config.TextExtensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// RefreshContent lists objects under each prefix and ingests the
// text-like ones. Object failures are logged and skipped.
func (a *S3Agent) RefreshContent(ctx context.Context) error {
	client, err := a.s3Client(ctx)
	if err != nil {
		return err
	}
	timeout := a.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxKeys := a.config.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 100
	}

	prefixes := a.config.Prefixes
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	var firstErr error
	for _, prefix := range prefixes {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		listing, err := client.ListObjectsV2(cctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(a.config.Bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(maxKeys),
		})
		cancel()
		if err != nil {
			a.logger.Printf("list failed for prefix %q: %v", prefix, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("s3 refresh prefix %q: %w", prefix, err)
			}
			continue
		}

		for _, obj := range listing.Contents {
			key := aws.ToString(obj.Key)
			if !a.textObject(key) {
				continue
			}
			if a.maxObjSize > 0 && aws.ToInt64(obj.Size) > a.maxObjSize {
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			out, err := client.GetObject(cctx, &s3.GetObjectInput{
				Bucket: aws.String(a.config.Bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				cancel()
				a.logger.Printf("get failed for %s: %v", key, err)
				continue
			}
			data, readErr := io.ReadAll(out.Body)
			out.Body.Close()
			cancel()
			if readErr != nil {
				a.logger.Printf("read failed for %s: %v", key, readErr)
				continue
			}
			a.ingest(string(data), "s3://"+a.config.Bucket+"/"+key, string(core.SourceS3), map[string]interface{}{
				"bucket": a.config.Bucket,
				"key":    key,
				"size":   aws.ToInt64(obj.Size),
			})
		}
		a.logger.Printf("refreshed prefix %q: %d object(s) listed", prefix, len(listing.Contents))
	}
	return firstErr
}

func (a *S3Agent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	if a.refresh.due() {
		if err := a.RefreshContent(ctx); err != nil {
			a.logger.Printf("lazy refresh failed, serving stale index: %v", err)
		}
	}
	records := a.searchIndexed(query, string(core.SourceS3), maxResults)
	return core.AgentResponse{
		SourceType: core.SourceS3,
		Success:    true,
		Data:       records,
		Metadata:   map[string]interface{}{"bucket": a.config.Bucket},
	}, nil
}

func (a *S3Agent) HealthCheck(ctx context.Context) (bool, error) {
	client, err := a.s3Client(ctx)
	if err != nil {
		if a.config.Bucket == "" {
			return false, nil
		}
		return false, err
	}
	timeout := a.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := client.HeadBucket(cctx, &s3.HeadBucketInput{Bucket: aws.String(a.config.Bucket)}); err != nil {
		return false, fmt.Errorf("s3 bucket %s not reachable: %w", a.config.Bucket, err)
	}
	return true, nil
}
