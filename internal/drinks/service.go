package drinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errEmptyPatch      = errors.New("patch must change title or recipe")
	noOpLogger         = zap.NewNop()
)

// ErrorKind classifies service failures so callers can map them without string matching.
type ErrorKind int

const (
	// KindStorage covers store connectivity and unexpected driver failures.
	KindStorage ErrorKind = iota
	// KindInvalidInput indicates the caller supplied unusable values.
	KindInvalidInput
	// KindNotFound indicates the addressed drink does not exist.
	KindNotFound
	// KindConflict indicates a uniqueness constraint was violated.
	KindConflict
)

// ServiceError is the typed failure returned by every Service operation.
type ServiceError struct {
	code string
	kind ErrorKind
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable failure code, e.g. drinks.create.duplicate_title.
func (e *ServiceError) Code() string {
	return e.code
}

// Kind returns the failure class.
func (e *ServiceError) Kind() ErrorKind {
	return e.kind
}

const (
	opServiceNew = "drinks.service.new"
	opList       = "drinks.list"
	opFind       = "drinks.find"
	opCreate     = "drinks.create"
	opUpdate     = "drinks.update"
	opDelete     = "drinks.delete"

	reasonMissingDatabase = "missing_database"
	reasonQueryFailed     = "query_failed"
	reasonNotFound        = "not_found"
	reasonInvalidTitle    = "invalid_title"
	reasonEmptyPatch      = "empty_patch"
	reasonDuplicateTitle  = "duplicate_title"
	reasonInsertFailed    = "insert_failed"
	reasonSaveFailed      = "save_failed"
	reasonDeleteFailed    = "delete_failed"

	fieldDrinkID = "drink_id"
	queryByID    = "id = ?"
)

func newServiceError(operation, reason string, kind ErrorKind, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, kind: kind, err: cause}
}

// ServiceConfig bundles the dependencies of Service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service performs drink persistence against the relational store.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService validates dependencies and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, KindStorage, errMissingDatabase)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		logger: logger,
	}, nil
}

// List returns every drink ordered by identifier.
func (s *Service) List(ctx context.Context) ([]Drink, error) {
	if s.db == nil {
		s.logError(opList, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opList, reasonMissingDatabase, KindStorage, errMissingDatabase)
	}

	drinks := []Drink{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&drinks).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err)
		return nil, newServiceError(opList, reasonQueryFailed, KindStorage, err)
	}
	return drinks, nil
}

// Find returns the drink with the provided identifier or an ErrDrinkNotFound service error.
func (s *Service) Find(ctx context.Context, id uint) (Drink, error) {
	if s.db == nil {
		s.logError(opFind, reasonMissingDatabase, errMissingDatabase)
		return Drink{}, newServiceError(opFind, reasonMissingDatabase, KindStorage, errMissingDatabase)
	}
	return s.take(s.db.WithContext(ctx), opFind, id)
}

// Create inserts a new drink and returns it with its assigned identifier.
func (s *Service) Create(ctx context.Context, input NewDrink) (Drink, error) {
	if s.db == nil {
		s.logError(opCreate, reasonMissingDatabase, errMissingDatabase)
		return Drink{}, newServiceError(opCreate, reasonMissingDatabase, KindStorage, errMissingDatabase)
	}

	title, err := NormalizeTitle(input.Title)
	if err != nil {
		return Drink{}, newServiceError(opCreate, reasonInvalidTitle, KindInvalidInput, err)
	}

	drink := Drink{
		Title:  title,
		Recipe: normalizeRecipe(input.Recipe),
	}
	if err := s.db.WithContext(ctx).Create(&drink).Error; err != nil {
		if isDuplicateKey(err) {
			s.logWarn(opCreate, reasonDuplicateTitle, err, zap.String("title", title))
			return Drink{}, newServiceError(opCreate, reasonDuplicateTitle, KindConflict, err)
		}
		s.logError(opCreate, reasonInsertFailed, err, zap.String("title", title))
		return Drink{}, newServiceError(opCreate, reasonInsertFailed, KindStorage, err)
	}
	return drink, nil
}

// Update applies the patch to an existing drink inside a transaction.
func (s *Service) Update(ctx context.Context, id uint, patch DrinkPatch) (Drink, error) {
	if s.db == nil {
		s.logError(opUpdate, reasonMissingDatabase, errMissingDatabase)
		return Drink{}, newServiceError(opUpdate, reasonMissingDatabase, KindStorage, errMissingDatabase)
	}
	if patch.IsEmpty() {
		return Drink{}, newServiceError(opUpdate, reasonEmptyPatch, KindInvalidInput, errEmptyPatch)
	}

	var title string
	if patch.Title != nil {
		normalized, err := NormalizeTitle(*patch.Title)
		if err != nil {
			return Drink{}, newServiceError(opUpdate, reasonInvalidTitle, KindInvalidInput, err)
		}
		title = normalized
	}

	var updated Drink
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.take(tx, opUpdate, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			existing.Title = title
		}
		if patch.Recipe != nil {
			existing.Recipe = normalizeRecipe(*patch.Recipe)
		}
		if err := tx.Save(&existing).Error; err != nil {
			if isDuplicateKey(err) {
				s.logWarn(opUpdate, reasonDuplicateTitle, err, zap.Uint(fieldDrinkID, id))
				return newServiceError(opUpdate, reasonDuplicateTitle, KindConflict, err)
			}
			s.logError(opUpdate, reasonSaveFailed, err, zap.Uint(fieldDrinkID, id))
			return newServiceError(opUpdate, reasonSaveFailed, KindStorage, err)
		}
		updated = existing
		return nil
	})
	if txErr != nil {
		return Drink{}, txErr
	}
	return updated, nil
}

// Delete physically removes the drink. A missing drink is reported as not found.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if s.db == nil {
		s.logError(opDelete, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opDelete, reasonMissingDatabase, KindStorage, errMissingDatabase)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.take(tx, opDelete, id)
		if err != nil {
			return err
		}
		result := tx.Delete(&existing)
		if result.Error != nil {
			s.logError(opDelete, reasonDeleteFailed, result.Error, zap.Uint(fieldDrinkID, id))
			return newServiceError(opDelete, reasonDeleteFailed, KindStorage, result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opDelete, reasonNotFound, KindNotFound, ErrDrinkNotFound)
		}
		return nil
	})
}

func (s *Service) take(db *gorm.DB, operation string, id uint) (Drink, error) {
	var drink Drink
	err := db.Where(queryByID, id).Take(&drink).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Drink{}, newServiceError(operation, reasonNotFound, KindNotFound, ErrDrinkNotFound)
	}
	if err != nil {
		s.logError(operation, reasonQueryFailed, err, zap.Uint(fieldDrinkID, id))
		return Drink{}, newServiceError(operation, reasonQueryFailed, KindStorage, err)
	}
	return drink, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	s.loggerOrDefault().Error("drinks service error", serviceLogFields(operation, reason, err, fields)...)
}

func (s *Service) logWarn(operation, reason string, err error, fields ...zap.Field) {
	s.loggerOrDefault().Warn("drinks service rejected write", serviceLogFields(operation, reason, err, fields)...)
}

func serviceLogFields(operation, reason string, err error, fields []zap.Field) []zap.Field {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	return append(attrs, fields...)
}
