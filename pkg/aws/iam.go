package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/fnship/fnship/pkg/utils"
)

// RoleAPI is the subset of the IAM API used for role resolution.
type RoleAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// RoleResolver resolves execution role names into ARNs through IAM. It
// performs a live lookup on every call, so roles provisioned moments
// before a deploy are picked up.
type RoleResolver struct {
	client RoleAPI
}

// NewRoleResolver creates a RoleResolver.
// IAM is a global service; the region only selects the endpoint.
func NewRoleResolver(ctx context.Context, region string) (*RoleResolver, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &RoleResolver{client: iam.NewFromConfig(cfg)}, nil
}

// NewRoleResolverFromAPI wraps an existing client, mainly for tests.
func NewRoleResolverFromAPI(api RoleAPI) *RoleResolver {
	return &RoleResolver{client: api}
}

// ResolveRole returns the ARN for a role name. Values that already are
// ARNs pass through unchanged.
func (r *RoleResolver) ResolveRole(ctx context.Context, role string) (string, error) {
	if strings.HasPrefix(role, "arn:") {
		return role, nil
	}

	out, err := r.client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(role),
	})
	if err != nil {
		return "", fmt.Errorf("error getting role %s: %w", role, err)
	}
	if out.Role == nil || utils.SafeDeref(out.Role.Arn) == "" {
		return "", fmt.Errorf("role %s has no ARN", role)
	}
	return *out.Role.Arn, nil
}
