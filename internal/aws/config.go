package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	sdkconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/imrishuroy/glaze-storefront/internal/config"
)

// LoadAWSConfig resolves credentials from the default chain and applies the
// storefront's region, endpoint and retry overrides on top.
func LoadAWSConfig(ctx context.Context, c config.AWS) (sdkaws.Config, error) {
	var opts []func(*sdkconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, sdkconfig.WithRegion(c.Region))
	}
	if c.Endpoint != "" {
		opts = append(opts, sdkconfig.WithBaseEndpoint(c.Endpoint))
	}
	if c.MaxAttempts > 0 {
		opts = append(opts, sdkconfig.WithRetryMaxAttempts(c.MaxAttempts))
	}

	cfg, err := sdkconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return sdkaws.Config{}, fmt.Errorf("load aws config (region %q): %w", c.Region, err)
	}
	return cfg, nil
}
