// Command shroudvm obfuscates JavaScript-family source files into a
// self-contained virtual-machine interpreter.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/vanta-works/shroudvm/obfuscate"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	logJSON := flag.Bool("log-json", false, "Emit structured logs as JSON instead of text")
	outDir := flag.String("out", "out", "Output directory for obfuscated files")
	vmName := flag.String("vm-name", "", "Name to embed in the generated interpreter (default: random per file)")
	entropy := flag.Float64("entropy", 0, "Override entropy (0.0-1.0); 0 means use config/default")
	noStringEncoding := flag.Bool("no-string-encoding", false, "Disable constant-pool string encoding")
	noControlFlow := flag.Bool("no-control-flow-flattening", false, "Disable dispatch-loop flattening")
	noDeadCode := flag.Bool("no-dead-code", false, "Disable dead-code injection")
	noSelfDefending := flag.Bool("no-self-defending", false, "Disable the self-integrity digest check")
	noDebugProtection := flag.Bool("no-debug-protection", false, "Disable anti-debugger traps")
	lossy := flag.Bool("lossy", false, "Use lossy lowering: skip unsupported syntax instead of failing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shroudvm [options] <files...>\n\n")
		fmt.Fprintf(os.Stderr, "Obfuscates JavaScript-family source files into standalone interpreter programs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  shroudvm app.js                     # Obfuscate app.js into ./out/app.obf.js\n")
		fmt.Fprintf(os.Stderr, "  shroudvm -out build src/*.js         # Obfuscate a batch into build/\n")
		fmt.Fprintf(os.Stderr, "  shroudvm -v -entropy 0.5 app.js      # Lower entropy, verbose logging\n")
		fmt.Fprintf(os.Stderr, "  shroudvm -no-debug-protection app.js # Skip anti-debugger traps\n")
		fmt.Fprintf(os.Stderr, "  shroudvm -lossy legacy.js            # Tolerate unsupported syntax\n")
	}
	flag.Parse()

	setupLogging(*verbose, *logJSON)

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := obfuscate.FindAndLoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .shroudvm.toml: %v\n", err)
		os.Exit(1)
	}
	if *vmName != "" {
		cfg.VMName = *vmName
	}
	if *entropy > 0 {
		cfg.Entropy = *entropy
	}
	if *noStringEncoding {
		cfg.StringEncoding = false
	}
	if *noControlFlow {
		cfg.ControlFlowFlattening = false
	}
	if *noDeadCode {
		cfg.DeadCodeInjection = false
	}
	if *noSelfDefending {
		cfg.SelfDefending = false
	}
	if *noDebugProtection {
		cfg.DebugProtection = false
	}
	if *lossy {
		cfg.LowerPolicy = obfuscate.LowerPolicyLossy
	}

	if *verbose {
		slog.Info("resolved configuration",
			"entropy", cfg.Entropy,
			"lower-policy", cfg.LowerPolicy,
			"string-encoding", cfg.StringEncoding,
			"control-flow-flattening", cfg.ControlFlowFlattening,
			"dead-code-injection", cfg.DeadCodeInjection,
			"self-defending", cfg.SelfDefending,
			"debug-protection", cfg.DebugProtection,
		)
	}

	inputs, err := expandPaths(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := obfuscate.ProcessFiles(context.Background(), inputs, *outDir, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		reportSizes(inputs, *outDir)
	}
}

// setupLogging installs a slog handler gated by the -v flag, with an
// optional JSON encoding for machine consumption.
func setupLogging(verbose, asJSON bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if asJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// expandPaths resolves each argument to a list of regular files, walking
// directories one level deep rather than recursing — shroudvm obfuscates
// a project's source files on one invocation, not an arbitrarily deep
// tree.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", p, err)
		}
		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", p, err)
			}
			for _, e := range entries {
				if !e.IsDir() && isSourceFile(e.Name()) {
					files = append(files, filepath.Join(p, e.Name()))
				}
			}
			continue
		}
		files = append(files, p)
	}
	return files, nil
}

func isSourceFile(name string) bool {
	switch filepath.Ext(name) {
	case ".js", ".mjs", ".cjs":
		return true
	default:
		return false
	}
}

// reportSizes prints humanized input/output byte counts, for a quick
// eyeballed sense of how much an obfuscation run grew the source.
func reportSizes(inputs []string, outDir string) {
	var totalIn, totalOut uint64
	for _, in := range inputs {
		if st, err := os.Stat(in); err == nil {
			totalIn += uint64(st.Size())
		}
		base := filepath.Base(in)
		ext := filepath.Ext(base)
		outName := strings.TrimSuffix(base, ext) + ".obf.js"
		if st, err := os.Stat(filepath.Join(outDir, outName)); err == nil {
			totalOut += uint64(st.Size())
		}
	}
	fmt.Printf("Obfuscated %d file(s): %s -> %s\n", len(inputs), humanize.Bytes(totalIn), humanize.Bytes(totalOut))
}
