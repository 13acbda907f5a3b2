package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM client used by SSMParams.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

var _ ParamStore = (*SSMParams)(nil)

// SSMParams is a ParamStore backed by AWS SSM Parameter Store.
type SSMParams struct {
	client SSMAPI
}

// NewSSMParams wraps an SSM client.
func NewSSMParams(client SSMAPI) *SSMParams {
	return &SSMParams{client: client}
}

// Get returns the plain String value of the parameter.
func (p *SSMParams) Get(ctx context.Context, key string) (string, error) {
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return "", Wrap("get", key, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// Put overwrites the parameter as a Standard tier String.
func (p *SSMParams) Put(ctx context.Context, key, value string) error {
	_, err := p.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(key),
		Value:     aws.String(value),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
		Tier:      types.ParameterTierStandard,
	})
	return Wrap("put", key, err)
}
