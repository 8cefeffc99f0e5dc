package models

// Default platform parameters applied when the caller leaves a field unset.
const (
	DefaultHandler    = "index.handler"
	DefaultRole       = "lambda_basic_execution"
	DefaultRuntime    = "nodejs20.x"
	DefaultTimeout    = 30
	DefaultMemorySize = 128
)

// FunctionParams is the platform parameter set submitted on create and
// configuration update.
type FunctionParams struct {
	FunctionName string // Remote function name
	Handler      string // Entry-point reference (e.g. index.handler)
	Role         string // Execution role name or full ARN, resolved at deploy time
	Runtime      string // Runtime identifier (e.g. nodejs20.x)
	Timeout      int32  // Function timeout in seconds
	MemorySize   int32  // Memory allocation in MB
	Publish      bool   // Publish a version on code upload
}

// ParamOverrides are caller-supplied values layered over the defaults.
// Zero values mean "use the default"; Publish is a pointer so callers can
// explicitly disable it.
type ParamOverrides struct {
	FunctionName string
	Handler      string
	Role         string
	Runtime      string
	Timeout      int32
	MemorySize   int32
	Publish      *bool
}

// FunctionDefinition describes one deployable function: where its source
// lives and the parameters the remote platform should run it with.
// Definitions are immutable after construction; defaults are merged in
// exactly once by NewFunctionDefinition.
type FunctionDefinition struct {
	Identifier   string   // Unique name for this function within the deployment
	HandlerDir   string   // Directory whose files land at the package root
	LibDirs      []string // Shared library directories, packaged under their basenames
	EndpointsDir string   // Optional endpoints directory, packaged like a lib
	Params       FunctionParams
}

// NewFunctionDefinition builds a definition with overrides layered over the
// defaults. The function name defaults to the identifier. endpointsDir may
// be empty.
func NewFunctionDefinition(identifier, handlerDir string, libDirs []string, endpointsDir string, overrides ParamOverrides) FunctionDefinition {
	params := FunctionParams{
		FunctionName: identifier,
		Handler:      DefaultHandler,
		Role:         DefaultRole,
		Runtime:      DefaultRuntime,
		Timeout:      DefaultTimeout,
		MemorySize:   DefaultMemorySize,
		Publish:      true,
	}

	if overrides.FunctionName != "" {
		params.FunctionName = overrides.FunctionName
	}
	if overrides.Handler != "" {
		params.Handler = overrides.Handler
	}
	if overrides.Role != "" {
		params.Role = overrides.Role
	}
	if overrides.Runtime != "" {
		params.Runtime = overrides.Runtime
	}
	if overrides.Timeout > 0 {
		params.Timeout = overrides.Timeout
	}
	if overrides.MemorySize > 0 {
		params.MemorySize = overrides.MemorySize
	}
	if overrides.Publish != nil {
		params.Publish = *overrides.Publish
	}

	return FunctionDefinition{
		Identifier:   identifier,
		HandlerDir:   handlerDir,
		LibDirs:      libDirs,
		EndpointsDir: endpointsDir,
		Params:       params,
	}
}
