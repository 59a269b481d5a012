package option

import (
	"fmt"
	"regexp"

	"github.com/smallbiznis/societybill/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ApplyOperator adds a WHERE predicate. Fields that are not plain column names are ignored.
func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if !columnPattern.MatchString(cond.Field) {
			return db
		}
		switch cond.Operator {
		case EQ, NEQ, GT, GTE, LT, LTE:
			return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", cond.Field), cond.Value)
		default:
			return db
		}
	})
}

// WithSortBy orders by field, descending when desc is set.
func WithSortBy(field string, desc bool) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if !columnPattern.MatchString(field) {
			return db
		}
		if desc {
			return db.Order(field + " desc")
		}
		return db.Order(field + " asc")
	})
}

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// ApplyPagination fetches one row beyond the page size so callers can detect another page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return WithLimit(page.PageSize + 1)
}
