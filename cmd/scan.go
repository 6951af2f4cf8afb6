package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenscan/javasentry/analytics"
	"github.com/wardenscan/javasentry/engine"
	"github.com/wardenscan/javasentry/model"
	"github.com/wardenscan/javasentry/output"
	"github.com/wardenscan/javasentry/ruleset"
	"github.com/wardenscan/javasentry/rules"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a Java web project for taint-flow and pattern vulnerabilities",
	Long: `Scan a Java web project using AST call-graph backtracking and regex
template scanning.

Examples:
  # Scan with a single rule bundle
  javasentry scan --rules rules/owasp_java.json --project /path/to/project

  # Scan with a directory of rule bundles
  javasentry scan --rules rules/ --project /path/to/project

  # Scan with a remote ruleset bundle
  javasentry scan --ruleset java/security --project /path/to/project

  # Scan with an individual rule by ID
  javasentry scan --ruleset java/JAVA-SQLI-001 --project /path/to/project

  # Output to JSON file
  javasentry scan --ruleset java/security --project . --output json --output-file results.json

  # SARIF output for CI/CD integration
  javasentry scan --ruleset java/security --project . --output sarif --output-file results.sarif`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		startTime := time.Now()
		rulesPath, _ := cmd.Flags().GetString("rules")
		rulesetSpecs, _ := cmd.Flags().GetStringArray("ruleset")
		refreshRules, _ := cmd.Flags().GetBool("refresh-rules")
		projectPath, _ := cmd.Flags().GetString("project")
		verbose, _ := cmd.Flags().GetBool("verbose")
		debug, _ := cmd.Flags().GetBool("debug")
		failOnStr, _ := cmd.Flags().GetString("fail-on")
		outputFormat, _ := cmd.Flags().GetString("output")
		outputFile, _ := cmd.Flags().GetString("output-file")
		depth, _ := cmd.Flags().GetInt("depth")
		lite, _ := cmd.Flags().GetBool("lite")
		maxSeconds, _ := cmd.Flags().GetInt("max-seconds")
		ignoreSkipDirs, _ := cmd.Flags().GetBool("ignore-skip-dirs")

		analytics.ReportEventWithProperties(analytics.ScanStarted, map[string]interface{}{
			"output_format":     outputFormat,
			"has_local_rules":   rulesPath != "",
			"has_remote_rules":  len(rulesetSpecs) > 0,
			"remote_rule_count": len(rulesetSpecs),
			"lite":              lite,
		})

		if len(rulesetSpecs) == 0 && rulesPath == "" {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("either --rules or --ruleset flag is required")
		}

		if projectPath == "" {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("--project flag is required")
		}

		verbosity := output.VerbosityDefault
		if debug {
			verbosity = output.VerbosityDebug
		} else if verbose {
			verbosity = output.VerbosityVerbose
		}
		logger := output.NewLogger(verbosity)

		noBanner, _ := cmd.Flags().GetBool("no-banner")
		if output.ShouldShowBanner(logger.IsTTY(), noBanner) {
			output.PrintBanner(logger.GetWriter(), Version, output.DefaultBannerOptions())
		} else if logger.IsTTY() && !noBanner {
			fmt.Fprintln(logger.GetWriter(), output.GetCompactBanner(Version))
		}

		failOn := output.ParseFailOn(failOnStr)
		if len(failOn) > 0 {
			if err := output.ValidateSeverities(failOn); err != nil {
				return err
			}
		}

		finalRulesPath, tempDir, err := prepareRules(rulesPath, rulesetSpecs, refreshRules, logger)
		if err != nil {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "rule_preparation",
				"phase":      "initialization",
			})
			return fmt.Errorf("failed to prepare rules: %w", err)
		}
		if tempDir != "" {
			defer func() {
				if err := os.RemoveAll(tempDir); err != nil {
					logger.Warning("Failed to clean up temporary directory: %v", err)
				}
			}()
		}
		rulesPath = finalRulesPath

		if outputFormat != "" && outputFormat != "text" && outputFormat != "json" && outputFormat != "sarif" && outputFormat != "csv" {
			return fmt.Errorf("--output must be 'text', 'json', 'sarif', or 'csv'")
		}

		absProjectPath, err := filepath.Abs(projectPath)
		if err != nil {
			return fmt.Errorf("failed to resolve project path: %w", err)
		}
		projectPath = absProjectPath

		store, err := loadRuleStore(rulesPath)
		if err != nil {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "rule_loading",
				"phase":      "rule_loading",
			})
			return fmt.Errorf("failed to load rules: %w", err)
		}
		for _, w := range store.Warnings {
			logger.Warning("%s", w)
		}

		store.ApplyFlags(rules.Flags{
			LiteFast:       lite,
			IgnoreSkipDirs: ignoreSkipDirs,
			Depth:          depth,
			MaxSeconds:     maxSeconds,
		}, cmd.Flags().Changed("depth"), cmd.Flags().Changed("max-seconds"))

		if len(store.SinkRules) == 0 && len(store.TemplateRules) == 0 {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "no_rules",
				"phase":      "rule_loading",
			})
			return fmt.Errorf("no rules loaded: bundle contains neither sink_rules nor template_rules")
		}
		logger.Statistic("Loaded %d sink rule(s), %d template rule(s)", len(store.SinkRules), len(store.TemplateRules))

		logger.Progress("Running security scan...")
		logger.StartProgress("Scanning project", -1)

		eng := engine.New(store)
		var lastCount int
		findings, stats := eng.Run(projectPath, func(partial []model.Finding) {
			delta := len(partial) - lastCount
			if delta > 0 {
				logger.UpdateProgress(delta)
				lastCount += delta
			}
		})
		logger.FinishProgress()

		logger.Statistic("Parsed %d file(s), skipped %d, found %d AST finding(s), %d template finding(s)",
			stats.ParsedFiles, stats.SkippedFiles, stats.ASTFindings, stats.TemplateFindings)
		for _, e := range stats.Errors {
			logger.Debug("%v", e)
		}

		summary := output.BuildSummary(findings, len(store.SinkRules)+len(store.TemplateRules))

		if outputFormat == "" {
			outputFormat = "text"
		}

		logger.Progress("Generating %s output...", outputFormat)

		var outputWriter *os.File
		if outputFile != "" {
			outputWriter, err = os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer outputWriter.Close()
			logger.Progress("Writing output to %s", outputFile)
		}

		if err := writeFindings(outputFormat, findings, summary, outputWriter, projectPath, verbosity, logger); err != nil {
			return err
		}

		if outputWriter != nil {
			logger.Progress("Successfully wrote results to %s", outputFile)
		}

		hadErrors := len(stats.Errors) > 0
		exitCode := output.DetermineExitCode(findings, failOn, hadErrors)

		severityBreakdown := make(map[string]int)
		for _, fnd := range findings {
			severityBreakdown[fnd.Severity]++
		}

		analytics.ReportEventWithProperties(analytics.ScanCompleted, map[string]interface{}{
			"duration_ms":       time.Since(startTime).Milliseconds(),
			"rules_count":       len(store.SinkRules) + len(store.TemplateRules),
			"findings_count":    len(findings),
			"severity_critical": severityBreakdown[model.SeverityCritical],
			"severity_high":     severityBreakdown[model.SeverityHigh],
			"severity_medium":   severityBreakdown[model.SeverityMedium],
			"severity_low":      severityBreakdown[model.SeverityLow],
			"output_format":     outputFormat,
			"exit_code":         int(exitCode),
			"had_errors":        hadErrors,
			"lite":              lite,
		})

		if exitCode != output.ExitCodeSuccess {
			os.Exit(int(exitCode))
		}

		return nil
	},
}

// loadRuleStore loads a single rule bundle file, or merges every bundle in
// a directory (non-recursive) as overlays onto the first one found.
func loadRuleStore(rulesPath string) (*rules.Store, error) {
	info, err := os.Stat(rulesPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return rules.Load(rulesPath)
	}

	entries, err := os.ReadDir(rulesPath)
	if err != nil {
		return nil, err
	}

	var store *rules.Store
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		full := filepath.Join(rulesPath, name)
		if store == nil {
			store, err = rules.Load(full)
			if err != nil {
				return nil, err
			}
			continue
		}
		if err := store.LoadOverlay(full); err != nil {
			return nil, err
		}
	}
	if store == nil {
		return nil, fmt.Errorf("no rule bundle files found in %s", rulesPath)
	}
	return store, nil
}

func writeFindings(
	outputFormat string,
	findings []model.Finding,
	summary *output.Summary,
	outputWriter *os.File,
	projectPath string,
	verbosity output.VerbosityLevel,
	logger *output.Logger,
) error {
	switch outputFormat {
	case "text":
		formatter := output.NewTextFormatter(&output.OutputOptions{Verbosity: verbosity}, logger)
		if err := formatter.Format(findings, summary); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	case "json":
		scanInfo := output.ScanInfo{
			Target:        projectPath,
			Version:       Version,
			RulesExecuted: summary.RulesExecuted,
			Errors:        []string{},
		}
		formatter := newJSONFormatter(outputWriter)
		if err := formatter.Format(findings, summary, scanInfo); err != nil {
			return fmt.Errorf("failed to format JSON output: %w", err)
		}
	case "sarif":
		scanInfo := output.ScanInfo{
			Target:        projectPath,
			Version:       Version,
			RulesExecuted: summary.RulesExecuted,
			Errors:        []string{},
		}
		formatter := newSARIFFormatter(outputWriter)
		if err := formatter.Format(findings, scanInfo); err != nil {
			return fmt.Errorf("failed to format SARIF output: %w", err)
		}
	case "csv":
		formatter := newCSVFormatter(outputWriter)
		if err := formatter.Format(findings); err != nil {
			return fmt.Errorf("failed to format CSV output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
	return nil
}

func newJSONFormatter(w io.Writer) *output.JSONFormatter {
	if w != nil {
		return output.NewJSONFormatterWithWriter(w, nil)
	}
	return output.NewJSONFormatter(nil)
}

func newSARIFFormatter(w io.Writer) *output.SARIFFormatter {
	if w != nil {
		return output.NewSARIFFormatterWithWriter(w, nil)
	}
	return output.NewSARIFFormatter(nil)
}

func newCSVFormatter(w io.Writer) *output.CSVFormatter {
	if w != nil {
		return output.NewCSVFormatterWithWriter(w, nil)
	}
	return output.NewCSVFormatter(nil)
}

// findRulesDirectory locates the rules directory for resolving individual
// rule IDs. Looks in common locations relative to the working directory
// and under the user's local share directory.
func findRulesDirectory() string {
	candidates := []string{
		"rules",
		"../rules",
		"../../rules",
		filepath.Join(os.Getenv("HOME"), ".local", "share", "javasentry", "rules"),
		"/usr/local/share/javasentry/rules",
		"/opt/javasentry/rules",
	}

	for _, dir := range candidates {
		if absDir, err := filepath.Abs(dir); err == nil {
			if stat, err := os.Stat(absDir); err == nil && stat.IsDir() {
				return absDir
			}
		}
	}

	pwd, _ := os.Getwd()
	return filepath.Join(pwd, "rules")
}

// prepareRules downloads remote rulesets, resolves individual rule IDs,
// and merges them with local rule bundles if needed.
// Returns: (finalRulesPath, tempDirToCleanup, error).
func prepareRules(localRulesPath string, rulesetSpecs []string, refresh bool, logger *output.Logger) (string, string, error) {
	if len(rulesetSpecs) == 0 {
		return localRulesPath, "", nil
	}

	var bundleSpecs []string
	var ruleIDSpecs []string

	for _, spec := range rulesetSpecs {
		parts := strings.Split(spec, "/")
		if len(parts) == 2 && ruleset.IsRuleID(parts[1]) {
			ruleIDSpecs = append(ruleIDSpecs, spec)
		} else {
			bundleSpecs = append(bundleSpecs, spec)
		}
	}

	if len(bundleSpecs) > 0 {
		manifestLoader := ruleset.NewManifestLoader("https://assets.javasentry.dev/rules", getCacheDir())
		expanded, err := expandBundleSpecs(bundleSpecs, manifestLoader, logger)
		if err != nil {
			return "", "", err
		}
		bundleSpecs = expanded
	}

	var downloadedPaths []string
	if len(bundleSpecs) > 0 {
		config := &ruleset.DownloadConfig{
			BaseURL:       "https://assets.javasentry.dev/rules",
			CacheDir:      getCacheDir(),
			CacheTTL:      24 * time.Hour,
			ManifestTTL:   1 * time.Hour,
			HTTPTimeout:   30 * time.Second,
			RetryAttempts: 3,
		}

		downloader, err := ruleset.NewDownloader(config)
		if err != nil {
			return "", "", fmt.Errorf("failed to create downloader: %w", err)
		}
		downloader.SetLogger(logger)

		downloadedPaths = make([]string, 0, len(bundleSpecs))
		for _, spec := range bundleSpecs {
			if refresh {
				logger.Progress("Refreshing ruleset cache for %s...", spec)
				if err := downloader.RefreshCache(spec); err != nil {
					logger.Warning("Failed to invalidate cache for %s: %v", spec, err)
				}
			}

			path, err := downloader.Download(spec)
			if err != nil {
				return "", "", fmt.Errorf("failed to download ruleset %s: %w", spec, err)
			}
			downloadedPaths = append(downloadedPaths, path)
			logger.Progress("Downloaded ruleset: %s", spec)
		}
	}

	var resolvedRulePaths []string
	if len(ruleIDSpecs) > 0 {
		rulesBaseDir := findRulesDirectory()
		finder := ruleset.NewRuleFinder(rulesBaseDir)

		for _, spec := range ruleIDSpecs {
			ruleSpec, err := ruleset.ParseRuleSpec(spec)
			if err != nil {
				return "", "", fmt.Errorf("invalid rule spec %s: %w", spec, err)
			}
			if err := ruleSpec.Validate(); err != nil {
				return "", "", fmt.Errorf("invalid rule spec %s: %w", spec, err)
			}

			filePath, err := finder.FindRuleFile(ruleSpec)
			if err != nil {
				return "", "", fmt.Errorf("failed to find rule %s: %w", spec, err)
			}

			resolvedRulePaths = append(resolvedRulePaths, filePath)
			logger.Progress("Resolved rule %s -> %s", spec, filepath.Base(filePath))
		}
	}

	totalSources := len(downloadedPaths) + len(resolvedRulePaths) + boolToInt(localRulesPath != "")

	if totalSources == 1 {
		if localRulesPath != "" {
			return localRulesPath, "", nil
		}
		if len(downloadedPaths) == 1 {
			return downloadedPaths[0], "", nil
		}
		tempDir, err := os.MkdirTemp("", "javasentry-rules-*")
		if err != nil {
			return "", "", fmt.Errorf("failed to create temp directory: %w", err)
		}
		if err := copyFile(resolvedRulePaths[0], filepath.Join(tempDir, filepath.Base(resolvedRulePaths[0]))); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy rule file: %w", err)
		}
		return tempDir, tempDir, nil
	}

	tempDir, err := os.MkdirTemp("", "javasentry-rules-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Progress("Merging %d rule source(s)...", totalSources)

	if localRulesPath != "" {
		if err := copyRules(localRulesPath, tempDir, "local"); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy local rules: %w", err)
		}
	}

	for i, path := range downloadedPaths {
		destName := fmt.Sprintf("remote-%d", i)
		if err := copyRules(path, tempDir, destName); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy remote ruleset: %w", err)
		}
	}

	for i, filePath := range resolvedRulePaths {
		destName := fmt.Sprintf("rule-%d", i)
		destPath := filepath.Join(tempDir, destName)
		if err := os.MkdirAll(destPath, 0755); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to create directory: %w", err)
		}
		destFile := filepath.Join(destPath, filepath.Base(filePath))
		if err := copyFile(filePath, destFile); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy rule file %s: %w", filePath, err)
		}
	}

	logger.Progress("Merged %d rule source(s)", totalSources)
	return tempDir, tempDir, nil
}

// copyRules copies rule bundle files from src to dest/subdir.
func copyRules(src, dest, subdir string) error {
	destDir := filepath.Join(dest, subdir)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if srcInfo.IsDir() {
		entries, err := os.ReadDir(src)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}

		for _, entry := range entries {
			name := entry.Name()
			isBundle := strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
			if entry.IsDir() || !isBundle {
				continue
			}

			srcFile := filepath.Join(src, name)
			destFile := filepath.Join(destDir, name)
			if err := copyFile(srcFile, destFile); err != nil {
				return fmt.Errorf("failed to copy %s: %w", name, err)
			}
		}
	} else {
		destFile := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, destFile); err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
	}

	return nil
}

// expandBundleSpecs expands "category/all" specs into individual bundle specs.
func expandBundleSpecs(bundleSpecs []string, manifestProvider ruleset.ManifestProvider, logger *output.Logger) ([]string, error) {
	expandedBundleSpecs := make([]string, 0, len(bundleSpecs))

	for _, spec := range bundleSpecs {
		parsed, err := ruleset.ParseSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid ruleset spec %s: %w", spec, err)
		}

		if parsed.Bundle == "*" {
			manifest, err := manifestProvider.LoadCategoryManifest(parsed.Category)
			if err != nil {
				return nil, fmt.Errorf("failed to load manifest for category %s: %w", parsed.Category, err)
			}

			bundleNames := manifest.GetAllBundleNames()
			if len(bundleNames) == 0 {
				logger.Warning("Category %s has no bundles", parsed.Category)
				continue
			}

			logger.Progress("Expanding %s/all to %d bundles: %v", parsed.Category, len(bundleNames), bundleNames)

			for _, bundleName := range bundleNames {
				expandedBundleSpecs = append(expandedBundleSpecs, fmt.Sprintf("%s/%s", parsed.Category, bundleName))
			}
		} else {
			expandedBundleSpecs = append(expandedBundleSpecs, spec)
		}
	}

	return expandedBundleSpecs, nil
}

// copyFile copies a single file from src to dest.
func copyFile(src, dest string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getCacheDir returns the platform-specific cache directory for downloaded rulesets.
func getCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return filepath.Join(cacheDir, "javasentry", "rules")
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("rules", "r", "", "Path to a rule bundle file or directory of bundles")
	scanCmd.Flags().StringArray("ruleset", []string{}, "Ruleset bundle (e.g., java/security) or individual rule ID (e.g., java/JAVA-SQLI-001). Can be specified multiple times.")
	scanCmd.Flags().Bool("refresh-rules", false, "Force refresh of cached rulesets")
	scanCmd.Flags().StringP("project", "p", "", "Path to project directory to scan (required)")
	scanCmd.Flags().StringP("output", "o", "text", "Output format: text, json, sarif, or csv (default: text)")
	scanCmd.Flags().StringP("output-file", "f", "", "Write output to file instead of stdout")
	scanCmd.Flags().BoolP("verbose", "v", false, "Show statistics and timing information")
	scanCmd.Flags().Bool("debug", false, "Show detailed debug diagnostics with file-level progress and timestamps")
	scanCmd.Flags().String("fail-on", "", "Fail with exit code 1 if findings match severities (e.g., critical,high)")
	scanCmd.Flags().Int("depth", 0, "Maximum backtracking depth (default: bundle-specified or 15)")
	scanCmd.Flags().Bool("lite", false, "Skip chain enrichment scoring; report chains at a flat confidence")
	scanCmd.Flags().Int("max-seconds", 0, "Soft time budget hint carried through to the rule store (default: bundle-specified or 600)")
	scanCmd.Flags().Bool("ignore-skip-dirs", false, "Do not skip common build/vendor directories while walking the project")
	scanCmd.MarkFlagRequired("project")
}
