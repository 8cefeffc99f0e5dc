package deploy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fnship/fnship/internal/models"
	"github.com/fnship/fnship/pkg/archive"
	"github.com/fnship/fnship/pkg/deploy"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	existing *models.RemoteFunction
	getErr   error

	createErr    error
	createParams models.FunctionParams
	createRole   string
	createCode   deploy.Code

	updateCodeErr error
	codePublish   bool
	codePayload   deploy.Code

	updateConfigErr error
	configParams    models.FunctionParams
	configRole      string

	publishErr error
	published  models.RemoteFunction
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) callIndex(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (f *fakeRemote) GetFunction(ctx context.Context, name string) (*models.RemoteFunction, error) {
	f.record("GetFunction")
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.existing, nil
}

func (f *fakeRemote) CreateFunction(ctx context.Context, params models.FunctionParams, roleArn string, code deploy.Code) (*models.RemoteFunction, error) {
	f.record("CreateFunction")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createParams = params
	f.createRole = roleArn
	f.createCode = code
	return &models.RemoteFunction{FunctionName: params.FunctionName}, nil
}

func (f *fakeRemote) UpdateFunctionCode(ctx context.Context, name string, publish bool, code deploy.Code) (*models.RemoteFunction, error) {
	f.record("UpdateFunctionCode")
	if f.updateCodeErr != nil {
		return nil, f.updateCodeErr
	}
	f.codePublish = publish
	f.codePayload = code
	return &models.RemoteFunction{FunctionName: name}, nil
}

func (f *fakeRemote) UpdateFunctionConfiguration(ctx context.Context, params models.FunctionParams, roleArn string) (*models.RemoteFunction, error) {
	f.record("UpdateFunctionConfiguration")
	if f.updateConfigErr != nil {
		return nil, f.updateConfigErr
	}
	f.configParams = params
	f.configRole = roleArn
	return &models.RemoteFunction{FunctionName: params.FunctionName}, nil
}

func (f *fakeRemote) PublishVersion(ctx context.Context, name string) (*models.RemoteFunction, error) {
	f.record("PublishVersion")
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	published := f.published
	if published.FunctionName == "" {
		published.FunctionName = name
	}
	return &published, nil
}

type fakeResolver struct {
	mu    sync.Mutex
	arn   string
	err   error
	calls int
}

func (f *fakeResolver) ResolveRole(ctx context.Context, role string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.arn, nil
}

type fakeBuilder struct {
	mu      sync.Mutex
	data    []byte
	err     error
	calls   int
	gotAux  []string
	gotRoot string
}

func (f *fakeBuilder) Build(handlerDir string, auxDirs []string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.gotRoot = handlerDir
	f.gotAux = auxDirs
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeUploader struct {
	bucket string
	key    string
	err    error
	got    []byte
}

func (f *fakeUploader) UploadPackage(ctx context.Context, functionName string, data []byte) (string, string, error) {
	f.got = data
	if f.err != nil {
		return "", "", f.err
	}
	return f.bucket, f.key, nil
}

func testDefinition() models.FunctionDefinition {
	return models.NewFunctionDefinition("fn-a", "/src/fn-a",
		[]string{"/libs/common"}, "", models.ParamOverrides{
			Role: "arn:aws:iam::123456789012:role/fn-a-exec",
		})
}

func TestDeployer_Deploy(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown function takes create then publish, never update", func(t *testing.T) {
		remote := &fakeRemote{published: models.RemoteFunction{Version: "1"}}
		resolver := &fakeResolver{arn: "arn:aws:iam::123456789012:role/fn-a-exec"}
		builder := &fakeBuilder{data: []byte("zip-bytes")}

		d := deploy.New(remote, resolver, builder)
		res, err := d.Deploy(ctx, testDefinition())
		require.NoError(t, err)

		require.Equal(t, []string{"GetFunction", "CreateFunction", "PublishVersion"}, remote.calls)
		require.NotEmpty(t, remote.createCode.ZipFile)
		require.Equal(t, resolver.arn, remote.createRole)
		require.Equal(t, models.ActionCreated, res.Action)
		require.Equal(t, "1", res.Function.Version)
		require.Equal(t, int64(len(builder.data)), res.PackageSize)
		require.Equal(t, "/src/fn-a", builder.gotRoot)
		require.Equal(t, []string{"/libs/common"}, builder.gotAux)
	})

	t.Run("existing function takes code then configuration update, never create", func(t *testing.T) {
		remote := &fakeRemote{
			existing:  &models.RemoteFunction{FunctionName: "fn-a"},
			published: models.RemoteFunction{Version: "2"},
		}
		resolver := &fakeResolver{arn: "arn:aws:iam::123456789012:role/fn-a-exec"}
		builder := &fakeBuilder{data: []byte("zip-bytes")}

		d := deploy.New(remote, resolver, builder)
		res, err := d.Deploy(ctx, testDefinition())
		require.NoError(t, err)

		require.Equal(t, -1, remote.callIndex("CreateFunction"))
		require.Less(t, remote.callIndex("GetFunction"), remote.callIndex("UpdateFunctionCode"))
		require.Less(t, remote.callIndex("UpdateFunctionCode"), remote.callIndex("UpdateFunctionConfiguration"))
		require.Less(t, remote.callIndex("UpdateFunctionConfiguration"), remote.callIndex("PublishVersion"))

		require.True(t, remote.codePublish)
		require.Equal(t, resolver.arn, remote.configRole)
		require.Equal(t, models.ActionUpdated, res.Action)
		require.Equal(t, "2", res.Function.Version)
	})

	t.Run("probe failure aborts before create or update", func(t *testing.T) {
		remote := &fakeRemote{getErr: errors.New("access denied")}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{data: []byte("z")})

		_, err := d.Deploy(ctx, testDefinition())

		var probeErr *deploy.ProbeError
		require.ErrorAs(t, err, &probeErr)
		require.Equal(t, []string{"GetFunction"}, remote.calls)
	})

	t.Run("role failure on the create path blocks the create call", func(t *testing.T) {
		remote := &fakeRemote{}
		resolver := &fakeResolver{err: errors.New("no such role")}
		d := deploy.New(remote, resolver, &fakeBuilder{data: []byte("z")})

		_, err := d.Deploy(ctx, testDefinition())

		var roleErr *deploy.RoleResolutionError
		require.ErrorAs(t, err, &roleErr)
		require.Equal(t, -1, remote.callIndex("CreateFunction"))
		require.Equal(t, -1, remote.callIndex("PublishVersion"))
	})

	t.Run("role failure on the update path blocks only the configuration update", func(t *testing.T) {
		remote := &fakeRemote{existing: &models.RemoteFunction{FunctionName: "fn-a"}}
		resolver := &fakeResolver{err: errors.New("no such role")}
		d := deploy.New(remote, resolver, &fakeBuilder{data: []byte("z")})

		_, err := d.Deploy(ctx, testDefinition())

		var roleErr *deploy.RoleResolutionError
		require.ErrorAs(t, err, &roleErr)
		// The code update runs independently of role resolution and may
		// already have been submitted.
		require.NotEqual(t, -1, remote.callIndex("UpdateFunctionCode"))
		require.Equal(t, -1, remote.callIndex("UpdateFunctionConfiguration"))
		require.Equal(t, -1, remote.callIndex("PublishVersion"))
	})

	t.Run("packaging failure propagates unmodified", func(t *testing.T) {
		wantErr := &archive.PackagingError{Path: "/src/fn-a", Err: errors.New("read failed")}
		remote := &fakeRemote{}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{err: wantErr})

		_, err := d.Deploy(ctx, testDefinition())

		var pkgErr *archive.PackagingError
		require.ErrorAs(t, err, &pkgErr)
		require.Equal(t, wantErr, pkgErr)
		require.Equal(t, -1, remote.callIndex("CreateFunction"))
	})

	t.Run("create rejection preserves the platform error", func(t *testing.T) {
		platformErr := errors.New("InvalidParameterValueException: role not assumable")
		remote := &fakeRemote{createErr: platformErr}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{data: []byte("z")})

		_, err := d.Deploy(ctx, testDefinition())

		var opErr *deploy.RemoteOperationError
		require.ErrorAs(t, err, &opErr)
		require.Equal(t, "create-function", opErr.Op)
		require.ErrorIs(t, err, platformErr)
		require.Equal(t, -1, remote.callIndex("PublishVersion"))
	})

	t.Run("publish failure surfaces as a remote operation error", func(t *testing.T) {
		remote := &fakeRemote{publishErr: errors.New("throttled")}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{data: []byte("z")})

		_, err := d.Deploy(ctx, testDefinition())

		var opErr *deploy.RemoteOperationError
		require.ErrorAs(t, err, &opErr)
		require.Equal(t, "publish-version", opErr.Op)
	})

	t.Run("configured uploader routes the package through storage", func(t *testing.T) {
		remote := &fakeRemote{published: models.RemoteFunction{Version: "1"}}
		uploader := &fakeUploader{bucket: "deploy-artifacts", key: "fnship/fn-a/abc.zip"}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{data: []byte("zip-bytes")},
			deploy.WithUploader(uploader))

		_, err := d.Deploy(ctx, testDefinition())
		require.NoError(t, err)

		require.Equal(t, []byte("zip-bytes"), uploader.got)
		require.Nil(t, remote.createCode.ZipFile)
		require.Equal(t, "deploy-artifacts", remote.createCode.S3Bucket)
		require.Equal(t, "fnship/fn-a/abc.zip", remote.createCode.S3Key)
	})

	t.Run("upload failure aborts before the create call", func(t *testing.T) {
		remote := &fakeRemote{}
		uploader := &fakeUploader{err: errors.New("bucket missing")}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{data: []byte("z")},
			deploy.WithUploader(uploader))

		_, err := d.Deploy(ctx, testDefinition())

		var opErr *deploy.RemoteOperationError
		require.ErrorAs(t, err, &opErr)
		require.Equal(t, "upload-package", opErr.Op)
		require.Equal(t, -1, remote.callIndex("CreateFunction"))
	})

	t.Run("package and role are produced fresh on every attempt", func(t *testing.T) {
		remote := &fakeRemote{published: models.RemoteFunction{Version: "1"}}
		resolver := &fakeResolver{arn: "arn"}
		builder := &fakeBuilder{data: []byte("z")}
		d := deploy.New(remote, resolver, builder)

		def := testDefinition()
		_, err := d.Deploy(ctx, def)
		require.NoError(t, err)
		_, err = d.Deploy(ctx, def)
		require.NoError(t, err)

		require.Equal(t, 2, builder.calls)
		require.Equal(t, 2, resolver.calls)
	})

	t.Run("endpoints directory is packaged after the libs", func(t *testing.T) {
		remote := &fakeRemote{published: models.RemoteFunction{Version: "1"}}
		builder := &fakeBuilder{data: []byte("z")}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, builder)

		def := models.NewFunctionDefinition("fn-b", "/src/fn-b",
			[]string{"/libs/common", "/libs/auth"}, "/src/endpoints", models.ParamOverrides{})
		_, err := d.Deploy(ctx, def)
		require.NoError(t, err)

		require.Equal(t, []string{"/libs/common", "/libs/auth", "/src/endpoints"}, builder.gotAux)
	})
}

func TestDeployer_Plan(t *testing.T) {
	ctx := context.Background()

	t.Run("reports would-create for unknown functions", func(t *testing.T) {
		remote := &fakeRemote{}
		builder := &fakeBuilder{data: []byte("zip-bytes")}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, builder)

		res, err := d.Plan(ctx, testDefinition())
		require.NoError(t, err)

		require.Equal(t, models.ActionWouldCreate, res.Action)
		require.Equal(t, int64(len(builder.data)), res.PackageSize)
		require.Equal(t, []string{"GetFunction"}, remote.calls)
	})

	t.Run("reports would-update for existing functions", func(t *testing.T) {
		remote := &fakeRemote{existing: &models.RemoteFunction{FunctionName: "fn-a", Version: "7"}}
		d := deploy.New(remote, &fakeResolver{arn: "arn"}, &fakeBuilder{data: []byte("z")})

		res, err := d.Plan(ctx, testDefinition())
		require.NoError(t, err)

		require.Equal(t, models.ActionWouldUpdate, res.Action)
		require.Equal(t, "7", res.Function.Version)
		require.Equal(t, []string{"GetFunction"}, remote.calls)
	})
}
