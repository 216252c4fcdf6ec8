package httputil

import (
	"net/url"

	"github.com/oapi-codegen/runtime"

	"library-admin/internal/shared/apperr"
	"library-admin/internal/shared/model"
)

// containsSuffix 子串过滤参数后缀，如 title__icontains
const containsSuffix = "__icontains"

// QueryString 可选字符串参数
func QueryString(q url.Values, name string) (string, error) {
	var v *string
	if err := runtime.BindQueryParameter("form", true, false, name, q, &v); err != nil {
		return "", apperr.Validation("%s: %v", name, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// QueryInt 可选非负整数参数，缺省为 0
func QueryInt(q url.Values, name string) (int, error) {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, q, &v); err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, apperr.Validation("%s must not be negative", name)
	}
	return *v, nil
}

// QueryDate 可选日期参数（YYYY-MM-DD）
func QueryDate(q url.Values, name string) (model.Date, error) {
	s, err := QueryString(q, name)
	if err != nil || s == "" {
		return model.Date{}, err
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, apperr.Validation("%s: %v", name, err)
	}
	return d, nil
}

// Page limit / offset 分页参数
func Page(q url.Values) (limit, offset int, err error) {
	if limit, err = QueryInt(q, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = QueryInt(q, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// BindListQuery 绑定目录列表查询
//
// exact 中的字段按 ?field=v 精确匹配，contains 中的字段按 ?field__icontains=v
// 大小写无关子串匹配；另支持 name、search、ordering、limit、offset。
func BindListQuery(q url.Values, exact, contains []string) (model.ListQuery, error) {
	lq := model.ListQuery{Exact: map[string]string{}, Contains: map[string]string{}}
	for _, f := range exact {
		v, err := QueryString(q, f)
		if err != nil {
			return lq, err
		}
		if v != "" {
			lq.Exact[f] = v
		}
	}
	for _, f := range contains {
		v, err := QueryString(q, f+containsSuffix)
		if err != nil {
			return lq, err
		}
		if v != "" {
			lq.Contains[f] = v
		}
	}

	var err error
	if lq.Name, err = QueryString(q, "name"); err != nil {
		return lq, err
	}
	if lq.Search, err = QueryString(q, "search"); err != nil {
		return lq, err
	}
	if lq.Ordering, err = QueryString(q, "ordering"); err != nil {
		return lq, err
	}
	lq.Limit, lq.Offset, err = Page(q)
	return lq, err
}
