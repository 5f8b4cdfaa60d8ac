package obfuscate

import (
	"context"
	"crypto/rand"
	"log/slog"
	mathrand "math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vanta-works/shroudvm/cipher"
	"github.com/vanta-works/shroudvm/emit"
	"github.com/vanta-works/shroudvm/ident"
	"github.com/vanta-works/shroudvm/lower"
	"github.com/vanta-works/shroudvm/parser"
	"github.com/vanta-works/shroudvm/postprocess"
	"github.com/vanta-works/shroudvm/program"
)

// maxConcurrentFiles bounds ProcessFiles' errgroup so a thousand-file
// batch can't open a thousand file descriptors at once; a fixed ceiling
// rather than a config knob, since nothing downstream needs it tunable.
const maxConcurrentFiles = 8

// Obfuscate runs the full per-file pipeline on one source: parse, lower,
// encrypt, seal, emit, and post-process. It is synchronous end-to-end —
// no goroutine is spawned inside this function.
func Obfuscate(source []byte, cfg Config) ([]byte, error) {
	rendered, _, err := obfuscateSealed(source, cfg)
	if err != nil {
		return nil, err
	}
	return rendered, nil
}

// obfuscateSealed is Obfuscate's full implementation, additionally
// returning the sealed program.Program so ProcessFiles can cache it as a
// .svmc artifact alongside the rendered interpreter without re-running the
// pipeline.
func obfuscateSealed(source []byte, cfg Config) ([]byte, *program.Program, error) {
	prog, err := parser.ParseSource(string(source))
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: parsing source")
	}

	policy := lower.PolicyStrict
	if cfg.LowerPolicy == LowerPolicyLossy {
		policy = lower.PolicyLossy
	}
	lowered, err := lower.New(policy).Lower(prog)
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: lowering")
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: generating emission seed")
	}
	keys, err := cipher.DeriveKeys(seed)
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: deriving keys")
	}

	pool := lowered.Pool
	if cfg.StringEncoding {
		pool, err = cipher.EncodePool(pool, keys.ChaChaKey, keys.ChaChaNonce)
		if err != nil {
			return nil, nil, errors.Wrap(err, "obfuscate: encoding constant pool")
		}
	}

	entropy := cfg.Entropy
	ciphertext, cipherID, originalLen, err := cipher.EncodeBytecode(lowered.Code, keys, false, cfg.DeadCodeInjection, entropy)
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: encoding bytecode")
	}

	sealed, err := program.Seal(ciphertext, keys, cipherID, originalLen, pool)
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: sealing program")
	}

	names := ident.NewNameManager(12)
	emitter, err := emit.NewEmitter(names)
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: constructing emitter")
	}
	rendered, err := emitter.Emit(sealed, emit.Config{
		VMName:          cfg.VMName,
		DebugProtection: cfg.DebugProtection,
		SelfDefending:   cfg.SelfDefending,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "obfuscate: emitting interpreter")
	}

	if cfg.ControlFlowFlattening {
		rendered = postprocess.FlattenControlFlow(rendered)
	}
	if cfg.TransformObjectKeys {
		rendered = postprocess.RewriteProperties(rendered)
	}
	if cfg.DeadCodeInjection {
		entropySeed := names.Seed()
		rng := mathrand.New(mathrand.NewSource(int64(seedHalf(entropySeed[:], 0) ^ seedHalf(entropySeed[:], 8))))
		rendered = postprocess.InjectDecoyComments(rendered, rng, entropy*0.1)
	}

	return []byte(rendered), sealed, nil
}

func seedHalf(b []byte, offset int) uint64 {
	var v uint64
	for i := 0; i < 8 && offset+i < len(b); i++ {
		v = v<<8 | uint64(b[offset+i])
	}
	return v
}

// ProcessFiles runs Obfuscate across every input path concurrently,
// bounded by maxConcurrentFiles via errgroup.SetLimit, writing each
// result into outputDir under its original base name. Nothing is shared
// across goroutines except outputDir itself: each goroutine reads its own
// input path and writes its own output path, so no two goroutines ever
// touch the same file.
func ProcessFiles(ctx context.Context, inputPaths []string, outputDir string, cfg Config) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "obfuscate: creating output directory %s", outputDir)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)

	for _, inputPath := range inputPaths {
		inputPath := inputPath
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(inputPath)
			if err != nil {
				return errors.Wrapf(err, "obfuscate: reading %s", inputPath)
			}
			out, sealed, err := obfuscateSealed(source, cfg)
			if err != nil {
				return errors.Wrapf(err, "obfuscate: processing %s", inputPath)
			}
			outPath := filepath.Join(outputDir, outputName(inputPath))
			if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return errors.Wrapf(err, "obfuscate: writing %s", outPath)
			}

			cached, err := program.Marshal(sealed)
			if err != nil {
				return errors.Wrapf(err, "obfuscate: marshaling cache artifact for %s", inputPath)
			}
			cachePath := filepath.Join(outputDir, cacheName(inputPath))
			if err := os.WriteFile(cachePath, cached, 0o644); err != nil {
				return errors.Wrapf(err, "obfuscate: writing %s", cachePath)
			}

			slog.Info("obfuscated file", "input", inputPath, "output", outPath, "cache", cachePath, "bytes", len(out))
			return nil
		})
	}
	return g.Wait()
}

func outputName(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)] + ".obf.js"
}

// cacheName names the .svmc intermediate artifact program.Marshal produces
// for inputPath. ProcessFiles writes it beside each output; nothing in this
// module reads it back, so every run lowers and encrypts its input afresh.
func cacheName(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)] + ".svmc"
}
