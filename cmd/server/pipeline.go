package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/plantdoc-api/internal/config"
	"github.com/Brownie44l1/plantdoc-api/internal/metadata"
	"github.com/Brownie44l1/plantdoc-api/internal/model"
	"github.com/Brownie44l1/plantdoc-api/internal/prediction"
	"github.com/Brownie44l1/plantdoc-api/internal/preprocess"
)

// pipeline is the process-wide, read-only state shared by every request.
type pipeline struct {
	classifier *model.ONNXClassifier
	predictor  *prediction.Service
	store      *metadata.Store
}

// loadPipeline loads the sidecar, both tables and then the model. Any error
// here is fatal.
func loadPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	var labels []string
	if cfg.Model.MetadataPath != "" {
		meta, err := model.LoadMetadata(cfg.Model.MetadataPath, cfg.Model.NumClasses, preprocess.Size)
		if err != nil {
			return nil, err
		}
		labels = meta.Classes
		logger.Info("model metadata loaded",
			zap.String("path", cfg.Model.MetadataPath),
			zap.Int("classes", len(meta.Classes)))
	}

	store, err := metadata.LoadFiles(cfg.Data.DiseasePath, cfg.Data.SupplementPath, cfg.Model.NumClasses, metadata.Options{
		Encoding:        cfg.Data.Encoding,
		Labels:          labels,
		StrictAlignment: cfg.Data.StrictAlignment,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range store.Mismatches() {
		logger.Warn("supplement row names a different disease", zap.String("detail", m))
	}
	logger.Info("metadata loaded",
		zap.String("diseases", cfg.Data.DiseasePath),
		zap.String("supplements", cfg.Data.SupplementPath),
		zap.Int("classes", store.Len()))

	logger.Info("loading model", zap.String("path", cfg.Model.Path))
	classifier, err := model.LoadONNX(cfg.Model.Path, model.Options{
		LibraryPath:    cfg.Model.ORTLibrary,
		IntraOpThreads: cfg.Model.IntraOpThreads,
		NumClasses:     cfg.Model.NumClasses,
		InputShape:     preprocess.Shape,
	})
	if err != nil {
		return nil, err
	}
	if store.Len() != classifier.NumClasses() {
		classifier.Close()
		return nil, errors.Errorf("metadata covers %d classes, model predicts %d", store.Len(), classifier.NumClasses())
	}

	return &pipeline{
		classifier: classifier,
		predictor:  prediction.NewService(classifier),
		store:      store,
	}, nil
}

func (p *pipeline) Close() {
	p.classifier.Close()
}
