package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWSConfig loads the default AWS configuration from the environment
// (credentials chain, region, optional localstack endpoint).
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}
