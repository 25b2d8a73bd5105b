package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Brand{}, &Athlete{}, &Evaluation{}, &Deal{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateBrand inserts a new brand.
func (d *Database) CreateBrand(b *Brand) error {
	if b == nil {
		return errors.New("brand is nil")
	}
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("brand id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(b).Error
}

// GetBrand retrieves a brand by ID.
func (d *Database) GetBrand(id string) (*Brand, error) {
	var brand Brand
	if err := d.gorm.First(&brand, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

// ListBrands returns every brand in insertion order.
func (d *Database) ListBrands() ([]Brand, error) {
	var brands []Brand
	if err := d.gorm.Order("created_at ASC, id ASC").Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return brands, nil
}

// CountBrands returns the brand count.
func (d *Database) CountBrands() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Brand{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateAthlete inserts a new athlete.
func (d *Database) CreateAthlete(a *Athlete) error {
	if a == nil {
		return errors.New("athlete is nil")
	}
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("athlete id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(a).Error
}

// GetAthlete retrieves an athlete by ID.
func (d *Database) GetAthlete(id string) (*Athlete, error) {
	var athlete Athlete
	if err := d.gorm.First(&athlete, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &athlete, nil
}

// ListAthletes returns every athlete in insertion order.
func (d *Database) ListAthletes() ([]Athlete, error) {
	var athletes []Athlete
	if err := d.gorm.Order("created_at ASC, id ASC").Find(&athletes).Error; err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	return athletes, nil
}

// CountAthletes returns the athlete count.
func (d *Database) CountAthletes() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Athlete{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceEvaluations atomically swaps the stored match set with the provided slice.
func (d *Database) ReplaceEvaluations(evals []Evaluation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Evaluation{}).Error; err != nil {
			return err
		}
		if len(evals) == 0 {
			return nil
		}
		// Batch insert to stay under SQLite's variable limit (999)
		const batchSize = 50
		for start := 0; start < len(evals); start += batchSize {
			end := start + batchSize
			if end > len(evals) {
				end = len(evals)
			}
			batch := evals[start:end]
			if err := tx.CreateInBatches(batch, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEvaluation fetches a single match by its composite ID.
func (d *Database) GetEvaluation(id string) (*Evaluation, error) {
	var eval Evaluation
	if err := d.gorm.First(&eval, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &eval, nil
}

// CountTopEvaluations returns the number of matches scoring at least minScore.
func (d *Database) CountTopEvaluations(minScore int) (int64, error) {
	var count int64
	if err := d.gorm.Model(&Evaluation{}).Where("score >= ?", minScore).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// EvaluationQuery encapsulates filters and pagination for listing matches.
type EvaluationQuery struct {
	BrandID   string
	AthleteID string
	MinScore  int
	// MaxScore is inclusive; nil means no upper bound.
	MaxScore *int
	Sort     string
	Offset   int
	Limit    int
}

// ListEvaluations returns paginated match rows applying optional filters.
func (d *Database) ListEvaluations(opts EvaluationQuery) ([]Evaluation, int64, error) {
	var total int64
	base := d.gorm.Model(&Evaluation{})
	if id := strings.TrimSpace(opts.BrandID); id != "" {
		base = base.Where("brand_id = ?", id)
	}
	if id := strings.TrimSpace(opts.AthleteID); id != "" {
		base = base.Where("athlete_id = ?", id)
	}
	if opts.MinScore > 0 {
		base = base.Where("score >= ?", opts.MinScore)
	}
	if opts.MaxScore != nil {
		base = base.Where("score <= ?", *opts.MaxScore)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	queryBuilder := base.Order(orderForSort(opts.Sort)).Offset(opts.Offset)
	if opts.Limit > 0 {
		queryBuilder = queryBuilder.Limit(opts.Limit)
	}

	var rows []Evaluation
	if err := queryBuilder.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderForSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "score_asc":
		return "evaluations.score ASC, evaluations.rank DESC"
	case "audience_desc":
		return "evaluations.audience_overlap DESC, evaluations.rank ASC"
	case "location_desc":
		return "evaluations.location_match DESC, evaluations.rank ASC"
	case "engagement_desc":
		return "evaluations.engagement_quality DESC, evaluations.rank ASC"
	case "category_desc":
		return "evaluations.category_alignment DESC, evaluations.rank ASC"
	case "budget_desc":
		return "evaluations.budget_fit DESC, evaluations.rank ASC"
	default:
		return "evaluations.rank ASC"
	}
}

// CreateDeal inserts a new deal.
func (d *Database) CreateDeal(deal *Deal) error {
	if deal == nil {
		return errors.New("deal is nil")
	}
	if !ValidDealStatus(deal.Status) {
		return fmt.Errorf("invalid deal status %q", deal.Status)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(deal).Error
}

// GetDeal retrieves a deal by ID.
func (d *Database) GetDeal(id string) (*Deal, error) {
	var deal Deal
	if err := d.gorm.First(&deal, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// ErrInvalidTransition is returned when a deal status change moves backwards.
var ErrInvalidTransition = errors.New("invalid deal status transition")

// UpdateDealStatus moves a deal to the supplied status.
func (d *Database) UpdateDealStatus(id, status string) (*Deal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var deal Deal
	err := d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&deal, "id = ?", id).Error; err != nil {
			return err
		}
		if !CanTransition(deal.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, deal.Status, status)
		}
		deal.Status = status
		return tx.Model(&deal).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// ListDeals returns deals newest first, optionally filtered by status.
func (d *Database) ListDeals(status string) ([]Deal, error) {
	query := d.gorm.Model(&Deal{}).Order("created_at DESC")
	if status = strings.TrimSpace(status); status != "" {
		query = query.Where("status = ?", status)
	}
	var deals []Deal
	if err := query.Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// CountDealsByStatus returns the number of deals in the given status.
func (d *Database) CountDealsByStatus(status string) (int64, error) {
	var count int64
	if err := d.gorm.Model(&Deal{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_evaluations_score_rank ON evaluations(score, rank)",
		"CREATE INDEX IF NOT EXISTS idx_brands_created ON brands(created_at, id)",
		"CREATE INDEX IF NOT EXISTS idx_athletes_created ON athletes(created_at, id)",
		"CREATE INDEX IF NOT EXISTS idx_deals_status_created ON deals(status, created_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
