// Package cmd provides the root command and CLI setup for tia.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"tia.dev/pkg/tia/internal/adapter"
	"tia.dev/pkg/tia/internal/controller"
	"tia.dev/pkg/tia/internal/coverage"
	"tia.dev/pkg/tia/internal/domain"
	m "tia.dev/pkg/tia/internal/model"
)

var goFileAdapter adapter.GoFileAdapter
var sourceFSAdapter *adapter.LocalSourceFSAdapter
var moduleCodec adapter.ModuleCodec
var coverageStore adapter.CoverageStore
var impactFile adapter.ImpactFile
var traceReader adapter.TraceReader
var workflow domain.Workflow
var ui controller.UI

// outputDirFlag is a root-level flag shared by commands that read/write coverage data.
var outputDirFlag string

// noCacheFlag disables test skipping when set.
var noCacheFlag bool

// verboseFlag switches logging to debug.
var verboseFlag bool

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

// includePatterns selects the modules to instrument.
var includePatterns []string

var testsFlag bool
var maxPathsFlag int
var runParallelFlag int

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	sourceFSAdapter = adapter.NewLocalSourceFSAdapter()
	moduleCodec = adapter.NewYAMLModuleCodec()
	coverageStore = adapter.NewLocalCoverageStore()
	impactFile = adapter.NewLocalImpactFile()
	traceReader = adapter.NewYAMLTraceReader()
	workflow = domain.NewWorkflow(domain.WorkflowDeps{
		SourceFS:      sourceFSAdapter,
		GoFile:        goFileAdapter,
		Codec:         moduleCodec,
		CoverageStore: coverageStore,
		ImpactFile:    impactFile,
		TraceReader:   traceReader,
		UI:            ui,
		Times:         adapter.ModuleTimes{Root: sourceFSAdapter.Root},
	})
}

const pathPatternsHelp = `Supports Go-style path patterns:
  - ./...          recursively scan current directory
  - ./pkg/...      recursively scan pkg directory
  - ./cmd ./pkg    scan multiple directories`

const rootLongDescription = `Tia records line, branch segment, path and data coverage of Go code and
uses the recorded call points to skip tests whose code has not changed since
they last passed.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tia",
		Short: "Coverage instrumentation and test impact analysis for Go",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
			coverage.SetDebugAssertions(viper.GetBool(debugAssertionsKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
}

// newRootCmd builds a root command with the persistent flags configured.
// Subcommands are added by the caller.
func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&outputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for coverage and test impact files",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVar(&noCacheFlag, noCacheFlagName, viper.GetBool(noCacheFlagName), "disable test skipping (run every test)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringArrayVarP(&includePatterns, includeFlagName, "i", viper.GetStringSlice(includeConfigKey), "instrument modules matching glob (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(includeFlagName), includeConfigKey)

	cmd.PersistentFlags().BoolVar(&testsFlag, testsFlagName, viper.GetBool(testsConfigKey), "instrument _test.go modules too")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(testsFlagName), testsConfigKey)

	cmd.PersistentFlags().IntVar(&maxPathsFlag, maxPathsFlagName, viper.GetInt(maxPathsConfigKey), "maximum paths enumerated per method")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(maxPathsFlagName), maxPathsConfigKey)

	cmd.PersistentFlags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of parallel workers")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(runParallelFlagName), runParallelConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the command context; tests still running are aborted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

func commonArgs(args []string) domain.CommonArgs {
	return domain.CommonArgs{
		Paths:   parsePaths(args),
		Exclude: viper.GetStringSlice(excludeConfigKey),
		Output:  m.Path(viper.GetString(outputFlagName)),
		Threads: viper.GetInt(runParallelConfigKey),
	}
}

func listArgs(args []string) domain.ListArgs {
	return domain.ListArgs{
		CommonArgs: commonArgs(args),
		Selector: domain.SelectorOptions{
			Include: viper.GetStringSlice(includeConfigKey),
			Exclude: viper.GetStringSlice(excludeConfigKey),
			Tests:   viper.GetBool(testsConfigKey),
		},
		MaxPaths: viper.GetInt(maxPathsConfigKey),
	}
}
