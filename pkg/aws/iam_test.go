package aws_test

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamTypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/require"

	"github.com/fnship/fnship/pkg/aws"
)

type fakeRoleAPI struct {
	out   *iam.GetRoleOutput
	err   error
	input *iam.GetRoleInput
	calls int
}

func (f *fakeRoleAPI) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.calls++
	f.input = params
	return f.out, f.err
}

func TestRoleResolver_ResolveRole(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a role name through IAM", func(t *testing.T) {
		api := &fakeRoleAPI{out: &iam.GetRoleOutput{
			Role: &iamTypes.Role{
				Arn: sdkaws.String("arn:aws:iam::123456789012:role/fn-a-exec"),
			},
		}}
		r := aws.NewRoleResolverFromAPI(api)

		arn, err := r.ResolveRole(ctx, "fn-a-exec")
		require.NoError(t, err)
		require.Equal(t, "arn:aws:iam::123456789012:role/fn-a-exec", arn)
		require.Equal(t, "fn-a-exec", *api.input.RoleName)
	})

	t.Run("full ARNs pass through without a lookup", func(t *testing.T) {
		api := &fakeRoleAPI{}
		r := aws.NewRoleResolverFromAPI(api)

		arn, err := r.ResolveRole(ctx, "arn:aws:iam::123456789012:role/custom")
		require.NoError(t, err)
		require.Equal(t, "arn:aws:iam::123456789012:role/custom", arn)
		require.Zero(t, api.calls)
	})

	t.Run("lookup failures propagate", func(t *testing.T) {
		wantErr := errors.New("NoSuchEntity")
		api := &fakeRoleAPI{err: wantErr}
		r := aws.NewRoleResolverFromAPI(api)

		_, err := r.ResolveRole(ctx, "missing-role")
		require.ErrorIs(t, err, wantErr)
	})

	t.Run("a role without an ARN is an error", func(t *testing.T) {
		api := &fakeRoleAPI{out: &iam.GetRoleOutput{Role: &iamTypes.Role{}}}
		r := aws.NewRoleResolverFromAPI(api)

		_, err := r.ResolveRole(ctx, "broken-role")
		require.ErrorContains(t, err, "no ARN")
	})
}
