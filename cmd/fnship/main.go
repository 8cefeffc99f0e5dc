package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/fnship/fnship/internal/config"
	"github.com/fnship/fnship/internal/models"
	"github.com/fnship/fnship/internal/version"
	"github.com/fnship/fnship/pkg/archive"
	"github.com/fnship/fnship/pkg/aws"
	"github.com/fnship/fnship/pkg/deploy"
	"github.com/fnship/fnship/pkg/formatter"
	"github.com/fnship/fnship/pkg/logging"
	"github.com/fnship/fnship/pkg/utils"
)

var (
	manifestPath  string
	region        string
	functionNames []string
	dryRun        bool
	verbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fnship",
		Short: "CLI tool to package and deploy Lambda functions",
		Long: `fnship packages function source directories into deployable archives
and reconciles them with AWS Lambda: each function is created or
updated depending on its remote state, then published as a version.`,
		SilenceUsage: true,
	}

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Package and deploy the functions in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy()
		},
	}

	deployCmd.Flags().StringVarP(&manifestPath, "file", "f", "fnship.toml", "Deploy manifest path")
	deployCmd.Flags().StringVarP(&region, "region", "r", "", "AWS region (overrides the manifest)")
	deployCmd.Flags().StringSliceVarP(&functionNames, "functions", "n", nil, "Deploy only these functions (comma separated)")
	deployCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build packages and probe remote state without deploying")
	deployCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Get().String())
		},
	}

	rootCmd.AddCommand(deployCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// runDeploy loads the manifest, wires the deploy pipeline and reconciles
// every selected function in parallel. Functions are independent, so
// deploying them concurrently is safe; two deploys of the same function
// name would race at the platform.
func runDeploy() error {
	ctx := context.Background()

	manifest, err := config.Load(manifestPath)
	if err != nil {
		return err
	}

	if region == "" {
		region = manifest.Region
	}
	if region == "" {
		region = utils.GetDefaultRegion()
	}
	if !utils.IsValidRegion(region) {
		return fmt.Errorf("invalid region '%s'", region)
	}

	defs, err := selectDefinitions(manifest.Definitions(), functionNames)
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	remote, err := aws.NewLambdaService(ctx, region)
	if err != nil {
		return err
	}
	roles, err := aws.NewRoleResolver(ctx, region)
	if err != nil {
		return err
	}

	opts := []deploy.Option{deploy.WithLogger(log)}
	if manifest.CodeBucket != "" {
		store, err := aws.NewPackageStore(ctx, region, manifest.CodeBucket)
		if err != nil {
			return err
		}
		opts = append(opts, deploy.WithUploader(store))
	}

	deployer := deploy.New(remote, roles, archive.NewBuilder(), opts...)

	mode := "Deploying"
	if dryRun {
		mode = "Planning"
	}
	fmt.Printf("%s %d function(s) in %s ...\n", mode, len(defs), region)
	deployStartTime := time.Now()

	// Start the spinner
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond)
	s.Suffix = fmt.Sprintf(" %s %d function(s) ...", mode, len(defs))
	s.Start()

	// Slice to store results
	results := make([]struct {
		result     *models.DeployResult
		err        error
		identifier string
	}, len(defs))

	// Process each function in parallel
	var wg sync.WaitGroup
	for i, def := range defs {
		wg.Add(1)
		go func(idx int, d models.FunctionDefinition) {
			defer wg.Done()

			results[idx].identifier = d.Identifier
			if dryRun {
				results[idx].result, results[idx].err = deployer.Plan(ctx, d)
			} else {
				results[idx].result, results[idx].err = deployer.Deploy(ctx, d)
			}
		}(i, def)
	}

	wg.Wait()

	// Calculate deploy duration
	deployDuration := time.Since(deployStartTime)

	succeeded := 0
	for _, result := range results {
		if result.err == nil {
			succeeded++
		}
	}

	// Set completion message with deploy time and function count
	s.FinalMSG = fmt.Sprintf("✓ [%d/%d functions] Deploy finished - Completed in %.2f seconds\n",
		succeeded, len(defs), deployDuration.Seconds())
	s.Stop() // Stop the spinner when done

	// Print per-function errors, collect successful results
	var deployed []models.DeployResult
	failed := 0
	for _, result := range results {
		if result.err != nil {
			failed++
			if code := aws.ErrorCode(result.err); code != "" {
				fmt.Printf("Error deploying %s: %v [%s]\n", result.identifier, result.err, code)
			} else {
				fmt.Printf("Error deploying %s: %v\n", result.identifier, result.err)
			}
			continue
		}
		deployed = append(deployed, *result.result)
	}

	// Display as table
	formatter.PrintDeployTable(deployed, deployStartTime, deployDuration)
	formatter.PrintDeploySummary(deployed)

	if failed > 0 {
		return fmt.Errorf("%d of %d function(s) failed", failed, len(defs))
	}
	return nil
}

// selectDefinitions narrows the manifest's definitions to the requested
// names, or returns all of them when no filter is given.
func selectDefinitions(defs []models.FunctionDefinition, names []string) ([]models.FunctionDefinition, error) {
	if len(names) == 0 {
		return defs, nil
	}

	byName := make(map[string]models.FunctionDefinition, len(defs))
	for _, def := range defs {
		byName[def.Identifier] = def
	}

	var selected []models.FunctionDefinition
	var missing []string
	for _, name := range names {
		def, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, def)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown function(s): %s", strings.Join(missing, ", "))
	}
	return selected, nil
}
