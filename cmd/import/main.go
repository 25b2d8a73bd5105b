package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"nil-match/backend/internal/ingest"
	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	defaultDB := filepath.FromSlash("data/nil-match.db")
	if override := os.Getenv("NILMATCH_DB_PATH"); override != "" {
		defaultDB = override
	}

	var (
		dbPath       = flag.String("db", defaultDB, "Path to SQLite database")
		brandsPath   = flag.String("brands", "", "CSV file of brands")
		athletesPath = flag.String("athletes", "", "CSV file of athletes")
		rulesPath    = flag.String("rules", os.Getenv("NILMATCH_RULES_PATH"), "Optional YAML scoring rules")
		skipMatches  = flag.Bool("no-recompute", false, "Import records without regenerating matches")
	)
	flag.Parse()

	if *brandsPath == "" && *athletesPath == "" {
		logrus.Fatal("nothing to import: pass -brands and/or -athletes")
	}

	scorer := scoring.Default()
	if *rulesPath != "" {
		rules, err := scoring.LoadRules(*rulesPath)
		if err != nil {
			logrus.Fatalf("load scoring rules: %v", err)
		}
		scorer = scoring.NewScorer(rules)
	}

	if dir := filepath.Dir(*dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}
	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	now := time.Now().UTC()
	if *brandsPath != "" {
		imported, err := importBrands(db, *brandsPath, now)
		if err != nil {
			logrus.Fatalf("import brands: %v", err)
		}
		logrus.WithFields(logrus.Fields{"file": *brandsPath, "imported": imported}).Info("brands imported")
	}
	if *athletesPath != "" {
		imported, err := importAthletes(db, *athletesPath, now)
		if err != nil {
			logrus.Fatalf("import athletes: %v", err)
		}
		logrus.WithFields(logrus.Fields{"file": *athletesPath, "imported": imported}).Info("athletes imported")
	}

	if *skipMatches {
		return
	}
	summary, err := matching.NewService(db, scorer).Recompute(context.Background(), matching.TriggerImport)
	if err != nil {
		logrus.Fatalf("recompute matches: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"matches":     summary.Total,
		"top_matches": summary.TopMatches,
	}).Info("import complete")
}

func importBrands(db *store.Database, path string, now time.Time) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	result, err := ingest.ParseBrands(f)
	if err != nil {
		return 0, err
	}
	logSkipped(path, result.Skipped)

	imported := 0
	for i := range result.Records {
		brand := result.Records[i]
		brand.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		if err := db.CreateBrand(&brand); err != nil {
			logrus.WithError(err).WithField("brand_id", brand.ID).Warn("skip brand")
			continue
		}
		imported++
	}
	return imported, nil
}

func importAthletes(db *store.Database, path string, now time.Time) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	result, err := ingest.ParseAthletes(f)
	if err != nil {
		return 0, err
	}
	logSkipped(path, result.Skipped)

	imported := 0
	for i := range result.Records {
		athlete := result.Records[i]
		athlete.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		if err := db.CreateAthlete(&athlete); err != nil {
			logrus.WithError(err).WithField("athlete_id", athlete.ID).Warn("skip athlete")
			continue
		}
		imported++
	}
	return imported, nil
}

func logSkipped(path string, rows []ingest.RowError) {
	for _, row := range rows {
		logrus.WithFields(logrus.Fields{
			"file": path,
			"line": row.Line,
		}).WithError(row.Err).Warn("skipped csv row")
	}
}
