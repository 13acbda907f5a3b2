// Package awsconf loads the AWS SDK configuration and builds the service
// clients with the endpoint overrides used for local stacks.
package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/pagopa/pn-mandate/internal/config"
)

// Clients holds the AWS service clients built from one configuration.
type Clients struct {
	cfg      aws.Config
	settings config.AWSConfig
}

// Load resolves credentials and region through the default chain, with
// the region from settings taking precedence.
func Load(ctx context.Context, settings config.AWSConfig) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Clients{cfg: cfg, settings: settings}, nil
}

// Region is the resolved region.
func (c *Clients) Region() string {
	return c.cfg.Region
}

// S3 returns an S3 client honouring the endpoint and path-style overrides.
func (c *Clients) S3() *s3.Client {
	var opts []func(*s3.Options)
	if c.settings.Endpoint != "" {
		endpoint := c.settings.Endpoint
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if c.settings.UsePathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(c.cfg, opts...)
}

// SSM returns an SSM client honouring the endpoint override.
func (c *Clients) SSM() *ssm.Client {
	var opts []func(*ssm.Options)
	if c.settings.Endpoint != "" {
		endpoint := c.settings.Endpoint
		opts = append(opts, func(o *ssm.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return ssm.NewFromConfig(c.cfg, opts...)
}

// ECS returns an ECS client honouring the endpoint override.
func (c *Clients) ECS() *ecs.Client {
	var opts []func(*ecs.Options)
	if c.settings.Endpoint != "" {
		endpoint := c.settings.Endpoint
		opts = append(opts, func(o *ecs.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return ecs.NewFromConfig(c.cfg, opts...)
}
