package database

import "gorm.io/gorm"

const maxPageSize = 100

// Paginate adds offset/limit to a query. page is 1-based.
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if pageSize < 1 {
			pageSize = 20
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// Newest orders by created_at descending, breaking ties on id
func Newest(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}
