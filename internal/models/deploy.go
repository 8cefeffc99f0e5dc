package models

import "time"

// DeployAction records which reconciliation path a deploy took.
type DeployAction string

const (
	ActionCreated     DeployAction = "created"
	ActionUpdated     DeployAction = "updated"
	ActionWouldCreate DeployAction = "would-create" // dry run
	ActionWouldUpdate DeployAction = "would-update" // dry run
)

// RemoteFunction is the platform's authoritative record of a function,
// as returned by create, update and publish calls. It is never
// constructed locally.
type RemoteFunction struct {
	FunctionName string // Remote function name
	FunctionArn  string // Fully qualified ARN
	Version      string // Published version tag ("$LATEST" until published)
	Runtime      string // Runtime identifier
	Handler      string // Entry-point reference
	Role         string // Resolved execution role ARN
	CodeSha256   string // Digest of the deployed package
	CodeSize     int64  // Deployed package size in bytes
	LastModified string // Platform-reported modification timestamp
}

// DeployResult wraps the final published description for downstream
// integration wiring. One instance is produced per successful deploy.
type DeployResult struct {
	Identifier  string         // Definition identifier
	Action      DeployAction   // created or updated
	Function    RemoteFunction // Description after publish
	PackageSize int64          // Built package size in bytes
	Duration    time.Duration  // Wall time for the whole attempt
}
