package deploy

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fnship/fnship/internal/models"
)

// Code is the package payload for create and code-update calls: inline
// zip bytes, or a previously uploaded object when a code bucket is
// configured.
type Code struct {
	ZipFile  []byte
	S3Bucket string
	S3Key    string
}

// RemoteService is the remote platform surface the deployer consumes.
// GetFunction returns (nil, nil) when the function does not exist; any
// other failure is returned as an error.
type RemoteService interface {
	GetFunction(ctx context.Context, name string) (*models.RemoteFunction, error)
	CreateFunction(ctx context.Context, params models.FunctionParams, roleArn string, code Code) (*models.RemoteFunction, error)
	UpdateFunctionCode(ctx context.Context, name string, publish bool, code Code) (*models.RemoteFunction, error)
	UpdateFunctionConfiguration(ctx context.Context, params models.FunctionParams, roleArn string) (*models.RemoteFunction, error)
	PublishVersion(ctx context.Context, name string) (*models.RemoteFunction, error)
}

// RoleResolver turns an execution-role name or ARN into a resolved ARN.
// It is consulted fresh on every deploy so freshly provisioned roles are
// picked up.
type RoleResolver interface {
	ResolveRole(ctx context.Context, role string) (string, error)
}

// PackageBuilder assembles the deployable archive for a function.
type PackageBuilder interface {
	Build(handlerDir string, auxDirs []string) ([]byte, error)
}

// PackageUploader stores a built package out of band and returns the
// bucket and key the code payload should reference.
type PackageUploader interface {
	UploadPackage(ctx context.Context, functionName string, data []byte) (bucket, key string, err error)
}

// Deployer reconciles local function definitions with the remote
// platform: probe, then exactly one of create or update, then publish.
type Deployer struct {
	remote   RemoteService
	roles    RoleResolver
	builder  PackageBuilder
	uploader PackageUploader
	log      *zap.Logger
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithLogger sets the deployer's logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Deployer) { d.log = log }
}

// WithUploader routes package bytes through an uploader so create and
// code-update calls reference a stored object instead of inline bytes.
func WithUploader(u PackageUploader) Option {
	return func(d *Deployer) { d.uploader = u }
}

// New creates a Deployer.
func New(remote RemoteService, roles RoleResolver, builder PackageBuilder, opts ...Option) *Deployer {
	d := &Deployer{
		remote:  remote,
		roles:   roles,
		builder: builder,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy reconciles one function definition with the remote platform and
// returns the published description.
//
// The path taken is decided solely by the existence probe. A failure at
// any step aborts the remaining pipeline with no retry and no rollback:
// a failed create leaves nothing behind remotely, while a failed update
// can leave the function with new code but old configuration (or the
// reverse) — the platform offers no transaction across the two calls.
// Concurrent deploys of the same function name race at the platform;
// serializing them is the caller's responsibility.
func (d *Deployer) Deploy(ctx context.Context, def models.FunctionDefinition) (*models.DeployResult, error) {
	start := time.Now()
	name := def.Params.FunctionName

	current, err := d.remote.GetFunction(ctx, name)
	if err != nil {
		return nil, &ProbeError{FunctionName: name, Err: err}
	}
	d.log.Debug("probed function",
		zap.String("function", name),
		zap.Bool("exists", current != nil))

	var (
		action  models.DeployAction
		pkgSize int64
	)
	if current == nil {
		action = models.ActionCreated
		pkgSize, err = d.create(ctx, def)
	} else {
		action = models.ActionUpdated
		pkgSize, err = d.update(ctx, def)
	}
	if err != nil {
		return nil, err
	}

	published, err := d.remote.PublishVersion(ctx, name)
	if err != nil {
		return nil, &RemoteOperationError{Op: "publish-version", FunctionName: name, Err: err}
	}
	d.log.Info("published version",
		zap.String("function", name),
		zap.String("version", published.Version))

	return &models.DeployResult{
		Identifier:  def.Identifier,
		Action:      action,
		Function:    *published,
		PackageSize: pkgSize,
		Duration:    time.Since(start),
	}, nil
}

// Plan builds the package and probes remote state without mutating
// anything, reporting the action Deploy would take.
func (d *Deployer) Plan(ctx context.Context, def models.FunctionDefinition) (*models.DeployResult, error) {
	start := time.Now()
	name := def.Params.FunctionName

	current, err := d.remote.GetFunction(ctx, name)
	if err != nil {
		return nil, &ProbeError{FunctionName: name, Err: err}
	}

	pkg, err := d.builder.Build(def.HandlerDir, auxDirs(def))
	if err != nil {
		return nil, err
	}

	action := models.ActionWouldCreate
	result := models.RemoteFunction{FunctionName: name}
	if current != nil {
		action = models.ActionWouldUpdate
		result = *current
	}

	return &models.DeployResult{
		Identifier:  def.Identifier,
		Action:      action,
		Function:    result,
		PackageSize: int64(len(pkg)),
		Duration:    time.Since(start),
	}, nil
}

// create builds the package and resolves the role concurrently, then
// submits a single create request. The caller's parameters are used
// verbatim except the role, which is overwritten with the resolved ARN,
// and the code, which carries the built package.
func (d *Deployer) create(ctx context.Context, def models.FunctionDefinition) (int64, error) {
	name := def.Params.FunctionName

	var (
		pkg     []byte
		roleArn string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := d.builder.Build(def.HandlerDir, auxDirs(def))
		if err != nil {
			return err
		}
		pkg = data
		return nil
	})
	g.Go(func() error {
		arn, err := d.roles.ResolveRole(gctx, def.Params.Role)
		if err != nil {
			return &RoleResolutionError{Role: def.Params.Role, Err: err}
		}
		roleArn = arn
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	code, err := d.codePayload(ctx, name, pkg)
	if err != nil {
		return 0, err
	}

	if _, err := d.remote.CreateFunction(ctx, def.Params, roleArn, code); err != nil {
		return 0, &RemoteOperationError{Op: "create-function", FunctionName: name, Err: err}
	}
	d.log.Debug("created function", zap.String("function", name), zap.Int("package_bytes", len(pkg)))

	return int64(len(pkg)), nil
}

// update builds the package first, then submits the code update and
// resolves the role concurrently, then submits the configuration update
// with the fresh role. The configuration update never carries the publish
// flag; publication is the explicit step that follows. If role resolution
// fails the code update may already have been accepted remotely.
func (d *Deployer) update(ctx context.Context, def models.FunctionDefinition) (int64, error) {
	name := def.Params.FunctionName

	pkg, err := d.builder.Build(def.HandlerDir, auxDirs(def))
	if err != nil {
		return 0, err
	}

	code, err := d.codePayload(ctx, name, pkg)
	if err != nil {
		return 0, err
	}

	var roleArn string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := d.remote.UpdateFunctionCode(gctx, name, def.Params.Publish, code); err != nil {
			return &RemoteOperationError{Op: "update-function-code", FunctionName: name, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		arn, err := d.roles.ResolveRole(gctx, def.Params.Role)
		if err != nil {
			return &RoleResolutionError{Role: def.Params.Role, Err: err}
		}
		roleArn = arn
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if _, err := d.remote.UpdateFunctionConfiguration(ctx, def.Params, roleArn); err != nil {
		return 0, &RemoteOperationError{Op: "update-function-configuration", FunctionName: name, Err: err}
	}
	d.log.Debug("updated function", zap.String("function", name), zap.Int("package_bytes", len(pkg)))

	return int64(len(pkg)), nil
}

// codePayload wraps the package bytes for submission, routing them
// through the uploader when one is configured.
func (d *Deployer) codePayload(ctx context.Context, name string, pkg []byte) (Code, error) {
	if d.uploader == nil {
		return Code{ZipFile: pkg}, nil
	}
	bucket, key, err := d.uploader.UploadPackage(ctx, name, pkg)
	if err != nil {
		return Code{}, &RemoteOperationError{Op: "upload-package", FunctionName: name, Err: err}
	}
	return Code{S3Bucket: bucket, S3Key: key}, nil
}

// auxDirs lists the auxiliary directories in packaging order: libs in
// caller order, then the endpoints directory when present.
func auxDirs(def models.FunctionDefinition) []string {
	dirs := make([]string, 0, len(def.LibDirs)+1)
	dirs = append(dirs, def.LibDirs...)
	if def.EndpointsDir != "" {
		dirs = append(dirs, def.EndpointsDir)
	}
	return dirs
}
