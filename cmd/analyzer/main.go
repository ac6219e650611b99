// The analyzer ingests semester report text files, runs the change and trend
// analyses and writes the comparative report. It shares the database with the
// API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/godilite/academic-insights/internal/config"
	"github.com/godilite/academic-insights/internal/repository"
	"github.com/godilite/academic-insights/internal/service"
	"github.com/godilite/academic-insights/internal/upmapi"
	dbbuilder "github.com/godilite/academic-insights/pkg/database"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.LoadFromEnv()

	textPath := flag.String("text", "", "path to a report text file to process")
	dirPath := flag.String("dir", "", "directory containing report text files")
	analyzeOnly := flag.Bool("analyze-only", false, "run trend analysis and the comparative report over the existing database")
	apiAnalysis := flag.Bool("api-analysis", false, "run the API-integrated change and correlation analysis")
	planCode := flag.String("plan", cfg.PlanCode, "study plan code for API lookups")
	outputDir := flag.String("output", cfg.OutputDir, "output directory for generated reports")
	dbPath := flag.String("db", cfg.DBPath, "path to the SQLite database")
	flag.Parse()

	if *textPath == "" && *dirPath == "" && !*analyzeOnly && !*apiAnalysis {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: specify a report file, a directory, or one of the analysis modes")
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(*dbPath),
	)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbPool.Close()

	repo := repository.NewAcademicRepository(dbPool)
	if err := repo.Setup(ctx); err != nil {
		logger.Fatal("Failed to set up schema", zap.Error(err))
	}

	apiClient := upmapi.New(logger,
		upmapi.WithBaseURL(cfg.APIBaseURL),
		upmapi.WithSemester(cfg.APISemester),
		upmapi.WithCacheDir(cfg.APICacheDir),
	)

	svc := service.NewAnalysisService(repo, apiClient, logger)

	if *textPath != "" {
		if err := ingestFile(ctx, svc, *textPath, logger); err != nil {
			logger.Fatal("Report ingestion failed", zap.String("path", *textPath), zap.Error(err))
		}
		runAnalysis(ctx, svc, *outputDir, logger)
	}

	if *dirPath != "" {
		if err := ingestDirectory(ctx, svc, *dirPath, logger); err != nil {
			logger.Fatal("Batch ingestion failed", zap.String("dir", *dirPath), zap.Error(err))
		}
		runAnalysis(ctx, svc, filepath.Join(*outputDir, "comparative_analysis"), logger)
	}

	if *analyzeOnly {
		runAnalysis(ctx, svc, filepath.Join(*outputDir, "comparative_analysis"), logger)
	}

	if *apiAnalysis {
		correlations, significance, err := svc.RunAPIIntegratedAnalysis(ctx, *planCode)
		if err != nil {
			logger.Fatal("API-integrated analysis failed", zap.Error(err))
		}
		logger.Info("API-integrated analysis completed",
			zap.Int("correlation_rows", len(correlations)),
			zap.Int("significance_results", len(significance)))

		summaryPath, err := svc.ExportCorrelationSummary(ctx, *outputDir)
		if err != nil {
			logger.Fatal("Correlation summary export failed", zap.Error(err))
		}
		logger.Info("correlation summary exported", zap.String("path", summaryPath))
	}
}

func ingestFile(ctx context.Context, svc *service.AnalysisService, path string, logger *zap.Logger) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	data, err := svc.IngestReportText(ctx, string(text))
	if err != nil {
		return err
	}

	logger.Info("report processed",
		zap.String("path", path),
		zap.String("academic_year", data.CourseInfo.AcademicYear),
		zap.Int("subjects", len(data.Subjects)))
	return nil
}

func ingestDirectory(ctx context.Context, svc *service.AnalysisService, dir string, logger *zap.Logger) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no report text files found in %s", dir)
	}

	for _, path := range paths {
		if err := ingestFile(ctx, svc, path, logger); err != nil {
			return fmt.Errorf("process %s: %w", path, err)
		}
	}
	return nil
}

func runAnalysis(ctx context.Context, svc *service.AnalysisService, outputDir string, logger *zap.Logger) {
	trends, err := svc.RunTrendAnalysis(ctx)
	if err != nil {
		logger.Fatal("Trend analysis failed", zap.Error(err))
	}
	logger.Info("trend analysis completed", zap.Int("subjects", len(trends)))

	if _, err := svc.RunSignificanceTests(ctx); err != nil && !errors.Is(err, service.ErrNoCorrelations) {
		logger.Fatal("Significance tests failed", zap.Error(err))
	}

	path, err := svc.WriteComparativeReport(ctx, outputDir)
	if err != nil {
		logger.Fatal("Comparative report failed", zap.Error(err))
	}
	logger.Info("comparative report written", zap.String("path", path))
}
