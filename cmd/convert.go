package main

import (
	"encoding/json"
	"fmt"

	"github.com/fyerfyer/docling-nodes/internal/nodeparser"
	"github.com/fyerfyer/docling-nodes/internal/reader"
	"github.com/fyerfyer/docling-nodes/internal/transforms"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	exportType  string
	chunkDocs   bool
	idGenerator string
	quiet       bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [sources...]",
	Short: "Convert sources and print documents or nodes as JSON lines",
	Long: `Convert local files or URLs and write one JSON object per line to stdout.
With --chunk every line is a node, otherwise every line is a whole document.
Progress is shown on stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger(logrus.New(), cfg.Log, cmd.ErrOrStderr())
		if logLevel == "" && cfg.Log.Level == "info" {
			// 标准错误留给进度行
			logger.SetLevel(logrus.WarnLevel)
		}

		if !cmd.Flags().Changed("export-type") {
			exportType = cfg.Reader.ExportType
		}
		if !cmd.Flags().Changed("chunk") {
			chunkDocs = cfg.Reader.ChunkDocs
		}
		if !cmd.Flags().Changed("id-generator") {
			idGenerator = cfg.Reader.IDGenerator
		}

		t, err := reader.ParseExportType(exportType)
		if err != nil {
			return err
		}
		gen, ok := transforms.NewIDGenerator(idGenerator)
		if !ok {
			return &reader.ConfigError{Field: "id_generator", Value: idGenerator}
		}

		conv, err := setupConverter(cfg, logger)
		if err != nil {
			return err
		}

		var progress *progressLine
		opts := []reader.Option{
			reader.WithExportType(t),
			reader.WithIDGenerator(gen),
			reader.WithChunking(chunkDocs),
			reader.WithLogger(logger),
		}
		if !quiet {
			progress = newProgressLine(cmd.ErrOrStderr(), len(args))
		}
		if chunkDocs {
			parserOpts := []nodeparser.Option{nodeparser.WithLogger(logger)}
			if progress != nil {
				parserOpts = append(parserOpts, nodeparser.WithProgress(progress))
			}
			p, err := reader.DefaultNodeParser(t, parserOpts...)
			if err != nil {
				return err
			}
			opts = append(opts, reader.WithNodeParser(p))
		}

		r, err := reader.NewReader(conv, opts...)
		if err != nil {
			return err
		}

		if progress != nil && !chunkDocs {
			progress.Start(len(args), "Converting")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		count := 0
		for node, err := range r.LazyLoadData(cmd.Context(), args...).All() {
			if err != nil {
				if progress != nil {
					progress.Fail(err)
				}
				return err
			}
			if err := enc.Encode(node); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			count++
			if progress != nil && !chunkDocs {
				progress.Advance()
			}
		}
		if progress != nil && !chunkDocs {
			progress.Done()
		}

		logger.WithFields(logrus.Fields{
			"sources": len(args),
			"outputs": count,
		}).Info("Conversion finished")
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&exportType, "export-type", "e", "markdown", "Export type (markdown/json)")
	convertCmd.Flags().BoolVar(&chunkDocs, "chunk", true, "Split documents into nodes")
	convertCmd.Flags().StringVar(&idGenerator, "id-generator", "doc_hash", "Document id generator (doc_hash/uuid/none)")
	convertCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress line")

	rootCmd.AddCommand(convertCmd)
}
