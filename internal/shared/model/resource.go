package model

import (
	"encoding/json"
	"time"
)

// ResourceType 馆藏类型
type ResourceType string

const (
	ResourceTypeBook      ResourceType = "BOOK"
	ResourceTypeMagazine  ResourceType = "MAGAZINE"
	ResourceTypeNewspaper ResourceType = "NEWSPAPER"
	ResourceTypeOther     ResourceType = "OTHER"
)

// Valid 是否为已知类型
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceTypeBook, ResourceTypeMagazine, ResourceTypeNewspaper, ResourceTypeOther:
		return true
	}
	return false
}

// ResourceStatus 馆藏状态，只由借还流程修改
type ResourceStatus string

const (
	ResourceStatusAvailable ResourceStatus = "AVAILABLE"
	ResourceStatusBorrowed  ResourceStatus = "BORROWED"
)

// Resource 馆藏资源
type Resource struct {
	ResourceID      string         `json:"resource_id" bson:"_id" db:"resource_id" validate:"required,max=20"`
	Title           string         `json:"title" bson:"title" db:"title" validate:"required"`
	ResourceType    ResourceType   `json:"resource_type" bson:"resource_type" db:"resource_type" validate:"required,oneof=BOOK MAGAZINE NEWSPAPER OTHER"`
	Author          string         `json:"author" bson:"author" db:"author" validate:"required"`
	PublicationYear int            `json:"publication_year" bson:"publication_year" db:"publication_year" validate:"required,gt=0"`
	Status          ResourceStatus `json:"status" bson:"status" db:"status" validate:"omitempty,oneof=AVAILABLE BORROWED"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// MarshalJSON 额外输出 year 字段（与 publication_year 相同）
func (r Resource) MarshalJSON() ([]byte, error) {
	type alias Resource
	return json.Marshal(struct {
		alias
		Year int `json:"year"`
	}{alias: alias(r), Year: r.PublicationYear})
}

// ResourcePatch 资源部分更新
//
// resource_id 与 status 不可修改，出现即为校验错误。
type ResourcePatch struct {
	ResourceID      *string         `json:"resource_id"`
	Title           *string         `json:"title"`
	ResourceType    *ResourceType   `json:"resource_type"`
	Author          *string         `json:"author"`
	PublicationYear *int            `json:"publication_year"`
	Status          *ResourceStatus `json:"status"`
}

// Apply 将可修改字段应用到资源
func (p *ResourcePatch) Apply(r *Resource) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.ResourceType != nil {
		r.ResourceType = *p.ResourceType
	}
	if p.Author != nil {
		r.Author = *p.Author
	}
	if p.PublicationYear != nil {
		r.PublicationYear = *p.PublicationYear
	}
}

// 资源列表可用的过滤、搜索、排序字段
var (
	ResourceExactFields    = []string{"resource_id", "title", "author", "resource_type", "status"}
	ResourceContainsFields = []string{"resource_id", "title", "author"}
	ResourceSearchFields   = []string{"title", "author", "resource_id"}
	ResourceOrderingFields = []string{"title", "author", "status", "resource_type"}
)
