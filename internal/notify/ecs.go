package notify

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

// ECSAPI is the subset of the ECS client used by ECS.
type ECSAPI interface {
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
}

var _ Notifier = (*ECS)(nil)

// ECS refreshes a service by forcing a new deployment in a cluster.
type ECS struct {
	client  ECSAPI
	cluster string
}

// NewECS returns a notifier for services in cluster.
func NewECS(client ECSAPI, cluster string) *ECS {
	return &ECS{client: client, cluster: cluster}
}

// TriggerRefresh forces a new deployment of service. The returned Ack holds
// the service ARN and the id of the newest deployment.
func (e *ECS) TriggerRefresh(ctx context.Context, service string) (*Ack, error) {
	out, err := e.client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(e.cluster),
		Service:            aws.String(service),
		ForceNewDeployment: true,
	})
	if err != nil {
		return nil, Wrap(service, err)
	}
	if out == nil || out.Service == nil {
		return nil, Wrap(service, errors.New("update service returned no service"))
	}

	ack := &Ack{
		ServiceARN: aws.ToString(out.Service.ServiceArn),
		Status:     aws.ToString(out.Service.Status),
	}
	if len(out.Service.Deployments) > 0 {
		ack.DeploymentID = aws.ToString(out.Service.Deployments[0].Id)
	}
	return ack, nil
}
