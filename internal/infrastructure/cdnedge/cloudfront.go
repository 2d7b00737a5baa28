// Package cdnedge talks to the CDN edge cache in front of the processed
// bucket.
package cdnedge

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cdn-server/services/cdn-worker/internal/config"
)

// Invalidator requests CloudFront invalidations for deleted objects.
// When disabled or unconfigured it degrades to a logged no-op; cached
// copies of deleted files self-expire.
type Invalidator struct {
	client         *cloudfront.Client
	distributionID string
	enabled        bool
	log            zerolog.Logger
}

func NewInvalidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Invalidator, error) {
	logger := log.With().Str("component", "cloudfront").Logger()

	inv := &Invalidator{
		distributionID: cfg.CloudFrontDistributionID,
		enabled:        cfg.EnableCDNInvalidation,
		log:            logger,
	}
	if !inv.enabled || inv.distributionID == "" {
		return inv, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	inv.client = cloudfront.NewFromConfig(awsCfg)
	return inv, nil
}

func (i *Invalidator) Invalidate(ctx context.Context, paths []string) error {
	if !i.enabled {
		i.log.Debug().Int("paths", len(paths)).Msg("cloudfront invalidation disabled, skipping")
		return nil
	}
	if i.distributionID == "" {
		i.log.Warn().Int("paths", len(paths)).Msg("cloudfront distribution id not configured, skipping invalidation")
		return nil
	}
	if len(paths) == 0 {
		return nil
	}

	items := make([]string, len(paths))
	copy(items, paths)

	out, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(uuid.NewString()),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(items))),
				Items:    items,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create invalidation for %d paths: %w", len(items), err)
	}

	invalidationID := ""
	if out.Invalidation != nil {
		invalidationID = aws.ToString(out.Invalidation.Id)
	}
	i.log.Info().
		Str("invalidation_id", invalidationID).
		Int("paths", len(items)).
		Msg("cloudfront invalidation requested")
	return nil
}
