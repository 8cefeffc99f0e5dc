package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/fnship/fnship/internal/models"
	"github.com/fnship/fnship/pkg/deploy"
	"github.com/fnship/fnship/pkg/utils"
)

// FunctionAPI is the subset of the Lambda API the deploy pipeline uses.
type FunctionAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	PublishVersion(ctx context.Context, params *lambda.PublishVersionInput, optFns ...func(*lambda.Options)) (*lambda.PublishVersionOutput, error)
}

// LambdaService implements the deploy.RemoteService contract against the
// Lambda API.
type LambdaService struct {
	client FunctionAPI
	region string
}

// NewLambdaService creates a LambdaService for the given region.
func NewLambdaService(ctx context.Context, region string) (*LambdaService, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &LambdaService{
		client: lambda.NewFromConfig(cfg),
		region: region,
	}, nil
}

// NewLambdaServiceFromAPI wraps an existing client, mainly for tests.
func NewLambdaServiceFromAPI(api FunctionAPI) *LambdaService {
	return &LambdaService{client: api}
}

// GetFunction looks up a function by name. A "resource not found" response
// is returned as (nil, nil); every other failure propagates so the caller
// never mistakes an unknown state for "not deployed".
func (s *LambdaService) GetFunction(ctx context.Context, name string) (*models.RemoteFunction, error) {
	out, err := s.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var notFound *lambdaTypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting function %s: %w", name, err)
	}
	return fromConfiguration(out.Configuration), nil
}

// CreateFunction submits a create request carrying the caller's parameter
// set with the role overwritten by roleArn and the code payload attached.
func (s *LambdaService) CreateFunction(ctx context.Context, params models.FunctionParams, roleArn string, code deploy.Code) (*models.RemoteFunction, error) {
	out, err := s.client.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(params.FunctionName),
		Handler:      aws.String(params.Handler),
		Role:         aws.String(roleArn),
		Runtime:      lambdaTypes.Runtime(params.Runtime),
		Timeout:      aws.Int32(params.Timeout),
		MemorySize:   aws.Int32(params.MemorySize),
		Publish:      params.Publish,
		Code:         functionCode(code),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating function %s: %w", params.FunctionName, err)
	}
	return &models.RemoteFunction{
		FunctionName: utils.SafeDeref(out.FunctionName),
		FunctionArn:  utils.SafeDeref(out.FunctionArn),
		Version:      utils.SafeDeref(out.Version),
		Runtime:      string(out.Runtime),
		Handler:      utils.SafeDeref(out.Handler),
		Role:         utils.SafeDeref(out.Role),
		CodeSha256:   utils.SafeDeref(out.CodeSha256),
		CodeSize:     out.CodeSize,
		LastModified: utils.SafeDeref(out.LastModified),
	}, nil
}

// UpdateFunctionCode replaces the function's code with the given payload.
func (s *LambdaService) UpdateFunctionCode(ctx context.Context, name string, publish bool, code deploy.Code) (*models.RemoteFunction, error) {
	in := &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		Publish:      publish,
	}
	if code.ZipFile != nil {
		in.ZipFile = code.ZipFile
	} else {
		in.S3Bucket = aws.String(code.S3Bucket)
		in.S3Key = aws.String(code.S3Key)
	}

	out, err := s.client.UpdateFunctionCode(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("error updating code for function %s: %w", name, err)
	}
	return &models.RemoteFunction{
		FunctionName: utils.SafeDeref(out.FunctionName),
		FunctionArn:  utils.SafeDeref(out.FunctionArn),
		Version:      utils.SafeDeref(out.Version),
		Runtime:      string(out.Runtime),
		Handler:      utils.SafeDeref(out.Handler),
		Role:         utils.SafeDeref(out.Role),
		CodeSha256:   utils.SafeDeref(out.CodeSha256),
		CodeSize:     out.CodeSize,
		LastModified: utils.SafeDeref(out.LastModified),
	}, nil
}

// UpdateFunctionConfiguration submits the full parameter set with the role
// overwritten by roleArn. Configuration updates never publish a version;
// publication is the explicit separate step.
func (s *LambdaService) UpdateFunctionConfiguration(ctx context.Context, params models.FunctionParams, roleArn string) (*models.RemoteFunction, error) {
	out, err := s.client.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(params.FunctionName),
		Handler:      aws.String(params.Handler),
		Role:         aws.String(roleArn),
		Runtime:      lambdaTypes.Runtime(params.Runtime),
		Timeout:      aws.Int32(params.Timeout),
		MemorySize:   aws.Int32(params.MemorySize),
	})
	if err != nil {
		return nil, fmt.Errorf("error updating configuration for function %s: %w", params.FunctionName, err)
	}
	return &models.RemoteFunction{
		FunctionName: utils.SafeDeref(out.FunctionName),
		FunctionArn:  utils.SafeDeref(out.FunctionArn),
		Version:      utils.SafeDeref(out.Version),
		Runtime:      string(out.Runtime),
		Handler:      utils.SafeDeref(out.Handler),
		Role:         utils.SafeDeref(out.Role),
		CodeSha256:   utils.SafeDeref(out.CodeSha256),
		CodeSize:     out.CodeSize,
		LastModified: utils.SafeDeref(out.LastModified),
	}, nil
}

// PublishVersion freezes the current code and configuration as an
// immutable version and returns its description.
func (s *LambdaService) PublishVersion(ctx context.Context, name string) (*models.RemoteFunction, error) {
	out, err := s.client.PublishVersion(ctx, &lambda.PublishVersionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("error publishing version for function %s: %w", name, err)
	}
	return &models.RemoteFunction{
		FunctionName: utils.SafeDeref(out.FunctionName),
		FunctionArn:  utils.SafeDeref(out.FunctionArn),
		Version:      utils.SafeDeref(out.Version),
		Runtime:      string(out.Runtime),
		Handler:      utils.SafeDeref(out.Handler),
		Role:         utils.SafeDeref(out.Role),
		CodeSha256:   utils.SafeDeref(out.CodeSha256),
		CodeSize:     out.CodeSize,
		LastModified: utils.SafeDeref(out.LastModified),
	}, nil
}

func fromConfiguration(c *lambdaTypes.FunctionConfiguration) *models.RemoteFunction {
	if c == nil {
		return &models.RemoteFunction{}
	}
	return &models.RemoteFunction{
		FunctionName: utils.SafeDeref(c.FunctionName),
		FunctionArn:  utils.SafeDeref(c.FunctionArn),
		Version:      utils.SafeDeref(c.Version),
		Runtime:      string(c.Runtime),
		Handler:      utils.SafeDeref(c.Handler),
		Role:         utils.SafeDeref(c.Role),
		CodeSha256:   utils.SafeDeref(c.CodeSha256),
		CodeSize:     c.CodeSize,
		LastModified: utils.SafeDeref(c.LastModified),
	}
}

func functionCode(code deploy.Code) *lambdaTypes.FunctionCode {
	if code.ZipFile != nil {
		return &lambdaTypes.FunctionCode{ZipFile: code.ZipFile}
	}
	return &lambdaTypes.FunctionCode{
		S3Bucket: aws.String(code.S3Bucket),
		S3Key:    aws.String(code.S3Key),
	}
}
