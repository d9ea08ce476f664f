package database

import (
	"github.com/helixml/vidchat/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyOptions scopes a GORM session to the filters, ordering and limit
// described by options.
func ApplyOptions(db *gorm.DB, options ...repository.Option) *gorm.DB {
	q := repository.Build(options...)
	db = where(db, q)
	for _, s := range q.Sorts() {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Column}, Desc: s.Descending})
	}
	if q.Limit() > 0 {
		db = db.Limit(q.Limit())
	}
	return db
}

// ApplyConditions applies only the filters, for COUNT and DELETE.
func ApplyConditions(db *gorm.DB, options ...repository.Option) *gorm.DB {
	return where(db, repository.Build(options...))
}

func where(db *gorm.DB, q repository.Query) *gorm.DB {
	for _, f := range q.Filters() {
		db = db.Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
	}
	return db
}
