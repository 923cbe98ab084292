package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	internal "github.com/ZanzyTHEbar/bertfeat/bertfeat"
	"github.com/ZanzyTHEbar/bertfeat/bertfeat/config"
	"github.com/ZanzyTHEbar/bertfeat/bertfeat/encoder"
	"github.com/ZanzyTHEbar/bertfeat/bertfeat/extractor"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

func embedCmd() *cli.Command {
	var (
		configPath string
		modelPath  string
		tokenizer  string
		inputPath  string
		outputPath string
		pooling    string
		maxLength  int64
		provider   string
		deviceID   int64
		label      string
		raw        bool
	)

	return &cli.Command{
		Name:  "embed",
		Usage: "Embed input text, one document per line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a config file",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to the exported .onnx model",
				Destination: &modelPath,
			},
			&cli.StringFlag{
				Name:        "tokenizer",
				Aliases:     []string{"t"},
				Usage:       "path to the HuggingFace tokenizer.json",
				Destination: &tokenizer,
			},
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "input text file, one document per line (default stdin)",
				Destination: &inputPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output JSON file (default stdout)",
				Destination: &outputPath,
			},
			&cli.StringFlag{
				Name:        "pooling",
				Usage:       "pooling mode: cls, mean or cls_and_mean",
				Destination: &pooling,
			},
			&cli.IntFlag{
				Name:        "max-length",
				Aliases:     []string{"max_length"},
				Usage:       "maximum wordpiece count per document, markers included",
				Destination: &maxLength,
			},
			&cli.StringFlag{
				Name:        "execution-provider",
				Aliases:     []string{"ep"},
				Usage:       "onnxruntime execution provider: cpu, cuda, tensorrt, coreml, dml",
				Destination: &provider,
			},
			&cli.IntFlag{
				Name:        "device-id",
				Usage:       "device id for device-addressed execution providers",
				Destination: &deviceID,
			},
			&cli.StringFlag{
				Name:        "label",
				Usage:       "label to attach to every output example",
				Destination: &label,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "emit the full encoder exchange instead of pooled examples",
				Destination: &raw,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			// Flags override file and environment settings.
			if modelPath != "" {
				cfg.Model.Path = modelPath
			}
			if tokenizer != "" {
				cfg.Model.TokenizerPath = tokenizer
			}
			if provider != "" {
				cfg.Model.ExecutionProvider = provider
			}
			if deviceID != 0 {
				cfg.Model.DeviceID = int(deviceID)
			}
			if pooling != "" {
				cfg.Extractor.Pooling = pooling
			}
			if maxLength != 0 {
				cfg.Extractor.MaxLength = int(maxLength)
			}

			mode, err := extractor.ParsePooling(cfg.Extractor.Pooling)
			if err != nil {
				return err
			}

			log := internal.GetLogger()
			enc, err := encoder.NewONNX(encoder.ONNXConfig{
				ModelPath:         cfg.Model.Path,
				TokenOutput:       cfg.Model.TokenOutput,
				PooledOutput:      cfg.Model.PooledOutput,
				ExecutionProvider: cfg.Model.ExecutionProvider,
				DeviceID:          cfg.Model.DeviceID,
			}, log)
			if err != nil {
				return err
			}

			fe, err := extractor.New(extractor.Options{
				TokenizerPath: cfg.Model.TokenizerPath,
				MaxLength:     cfg.Extractor.MaxLength,
				Pooling:       mode,
				BatchWorkers:  cfg.Extractor.BatchWorkers,
			}, enc, log)
			if err != nil {
				_ = enc.Close()
				return err
			}
			defer fe.Close()

			texts, err := readLines(inputPath)
			if err != nil {
				return err
			}

			var out any
			if raw {
				encodings := make([]*extractor.Encoding, 0, len(texts))
				for _, text := range texts {
					e, err := fe.Encode(ctx, text)
					if err != nil {
						return err
					}
					encodings = append(encodings, e)
				}
				out = encodings
			} else {
				examples, err := fe.ExtractBatch(ctx, texts, label)
				if err != nil {
					return err
				}
				out = examples
			}

			return writeJSON(outputPath, out)
		},
	}
}

// readLines reads one document per line from path, or stdin when path is
// empty. Blank lines are kept: they are still valid (empty) documents.
func readLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
