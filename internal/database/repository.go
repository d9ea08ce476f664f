package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound indicates the requested row was not found. It matches
// domain.ErrNotFound under errors.Is.
var ErrNotFound = fmt.Errorf("entity %w", domain.ErrNotFound)

// EntityMapper maps between domain values and database models.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) D
	ToModel(domain D) E
}

// Repository provides generic persistence operations for one model type
// using repository.Option-based queries.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{
		db:     db,
		mapper: mapper,
		label:  label,
	}
}

func (r Repository[D, E]) modelDB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx).Model(new(E))
}

// Find retrieves entities matching the given options.
func (r Repository[D, E]) Find(ctx context.Context, options ...repository.Option) ([]D, error) {
	var entities []E
	db := ApplyOptions(r.modelDB(ctx), options...)
	if err := db.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}

	domains := make([]D, len(entities))
	for i, entity := range entities {
		domains[i] = r.mapper.ToDomain(entity)
	}
	return domains, nil
}

// FindOne retrieves a single entity matching the given options.
func (r Repository[D, E]) FindOne(ctx context.Context, options ...repository.Option) (D, error) {
	var entity E
	var zero D
	db := ApplyOptions(r.db.Session(ctx), options...)
	if err := db.First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNotFound, r.label)
		}
		return zero, fmt.Errorf("find one %s: %w", r.label, err)
	}
	return r.mapper.ToDomain(entity), nil
}

// Exists checks if any entity matches the given options.
func (r Repository[D, E]) Exists(ctx context.Context, options ...repository.Option) (bool, error) {
	n, err := r.Count(ctx, options...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of entities matching the given options.
func (r Repository[D, E]) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	var count int64
	db := ApplyConditions(r.modelDB(ctx), options...)
	if err := db.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return count, nil
}

// CreateIfAbsent inserts the value unless a row with the same primary key
// exists. It reports whether a row was inserted.
func (r Repository[D, E]) CreateIfAbsent(ctx context.Context, value D) (bool, error) {
	entity := r.mapper.ToModel(value)
	result := r.db.Session(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entity)
	if result.Error != nil {
		return false, fmt.Errorf("create %s: %w", r.label, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteBy removes entities matching the given options and returns how many
// rows were removed. Options without conditions are rejected so a missing
// filter can never wipe the table.
func (r Repository[D, E]) DeleteBy(ctx context.Context, options ...repository.Option) (int64, error) {
	if len(repository.Build(options...).Filters()) == 0 {
		return 0, fmt.Errorf("delete %s: no conditions given", r.label)
	}
	db := ApplyConditions(r.db.Session(ctx), options...)
	result := db.Delete(new(E))
	if result.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", r.label, result.Error)
	}
	return result.RowsAffected, nil
}

// DB returns a GORM session scoped to the entity model.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.modelDB(ctx)
}

// Mapper returns the entity mapper for external use.
func (r Repository[D, E]) Mapper() EntityMapper[D, E] {
	return r.mapper
}
