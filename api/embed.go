// Package api 内嵌的 OpenAPI 文档
package api

import "embed"

// SpecPath 内嵌文档在 OpenAPIFS 中的路径
const SpecPath = "openapi/library.yaml"

//go:embed openapi/*.yaml
var OpenAPIFS embed.FS

// Spec 返回内嵌的 OpenAPI 文档内容
func Spec() ([]byte, error) {
	return OpenAPIFS.ReadFile(SpecPath)
}
