package models

import (
	"strings"

	"github.com/xiehqing/streamcore/pkg/logs"
	"gorm.io/gorm"
)

type Pageable struct {
	PageNo   int       `json:"pageNo"`
	PageSize int       `json:"pageSize"`
	Sortable *Sortable `json:"sortable"`
}

func PageRequest(pageNo, pageSize int, sortField, sortOrder string) Pageable {
	if pageNo <= 0 {
		pageNo = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var sa = &Sortable{}
	if sortOrder == "" {
		sa.SortOrder = "asc"
	} else {
		sa.SortOrder = strings.ToLower(sortOrder)
	}
	if sortField == "" {
		sa.SortField = "id"
	} else {
		sa.SortField = sortField
	}
	return Pageable{
		PageNo:   pageNo,
		PageSize: pageSize,
		Sortable: sa,
	}
}

func (pa *Pageable) Offset() int {
	if pa.PageNo <= 0 {
		pa.PageNo = 1
	}
	if pa.PageSize <= 0 {
		pa.PageSize = 10
	}
	return (pa.PageNo - 1) * pa.PageSize
}

type Sortable struct {
	SortField string `json:"sortField"`
	SortOrder string `json:"sortOrder"`
}

func (sa *Sortable) Sort() string {
	var sortOrder, sortField string
	if sa.SortOrder == "" {
		sortOrder = "asc"
	} else {
		sortOrder = strings.ToLower(sa.SortOrder)
	}
	if sa.SortField == "" {
		sortField = "id"
	} else {
		sortField = sa.SortField
	}
	return sortField + " " + sortOrder
}

// PageQuery 分页查询
func PageQuery[T interface{}](tx *gorm.DB, pageable *Pageable, where string, args ...interface{}) ([]T, int64, error) {
	var lst []T
	var total int64
	query := tx.Model(new(T))
	if where != "" {
		query = query.Where(where, args...)
	}
	e := query.Count(&total).Error
	if e != nil {
		logs.Errorf("Page 统计失败: %v", e)
		return nil, 0, e
	}
	if pageable.Sortable != nil {
		query = query.Order(pageable.Sortable.Sort())
	}
	err := query.Offset(pageable.Offset()).
		Limit(pageable.PageSize).
		Find(&lst).
		Error
	if err != nil {
		logs.Errorf("Page 查询失败: %v", err)
		return nil, 0, err
	}
	return lst, total, nil
}
