package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plantdoc-api/internal/config"
	"github.com/Brownie44l1/plantdoc-api/internal/result"
)

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Classify a local image and print the result JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrapf(err, "read %s", args[0])
		}

		p, err := loadPipeline(cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		res := p.predictor.Predict(context.Background(), raw)
		if !res.OK() {
			return res.Failure
		}
		payload, err := result.Assemble(res.Index, p.store)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	},
}
