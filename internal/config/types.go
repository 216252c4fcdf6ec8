// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env.{env} 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在环境变量中（YAML 中不存储任何密码）。
//
// 配置路径确定策略：
//  1. --config 命令行参数（SetConfigDir）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/library-admin/
//     - dev/test → ./configs/
package config

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// 访问策略名称，auth.policies 中只允许出现这些值
const (
	PolicyAuthenticated      = "authenticated"
	PolicyReadOnlyOrElevated = "read_only_or_elevated"
	PolicyLibrarian          = "librarian"
	PolicyStudent            = "student"
)

// PolicyNames 全部合法策略名
var PolicyNames = []string{PolicyAuthenticated, PolicyReadOnlyOrElevated, PolicyLibrarian, PolicyStudent}

// 路由分组
const (
	GroupStudents  = "students"
	GroupResources = "resources"
	GroupBorrows   = "borrows"
	GroupReturns   = "returns"
	GroupReports   = "reports"
)

// RouteGroups 可在 auth.policies 中单独配置写权限的路由分组
var RouteGroups = []string{GroupStudents, GroupResources, GroupBorrows, GroupReturns, GroupReports}

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port             string   `yaml:"port"`
	CORSOrigins      []string `yaml:"cors_origins"`      // 允许的跨域来源，空表示不返回 CORS 头
	ValidateRequests bool     `yaml:"validate_requests"` // 是否按 OpenAPI 文档校验请求
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite", "postgres" 或 "mongodb"（默认 sqlite）
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

// RedisConfig Redis 配置，用于刷新令牌黑名单
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"`
}

// MinIOConfig MinIO 对象存储配置，Endpoint 为空时报表不落盘
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// Enabled 是否配置了对象存储
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// AuthConfig 认证与授权配置
// 注意：JWTSecret 与 Admin* 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret       string `yaml:"-"`                 // JWT_SECRET
	AccessTokenTTL  string `yaml:"access_token_ttl"`  // 例如 "15m"
	RefreshTokenTTL string `yaml:"refresh_token_ttl"` // 例如 "168h"
	AdminUsername   string `yaml:"-"`                 // ADMIN_USERNAME
	AdminEmail      string `yaml:"-"`                 // ADMIN_EMAIL
	AdminPassword   string `yaml:"-"`                 // ADMIN_PASSWORD

	// EnforceElevatedWrites 为 true 时学生/资源/借还/报表的写操作要求 librarian 或 admin
	EnforceElevatedWrites bool `yaml:"enforce_elevated_writes"`
	// Policies 按路由分组覆盖写操作策略，例如 borrows: librarian
	Policies map[string]string `yaml:"policies"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr 或文件路径
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "sqlite", "postgres" 或 "mongodb"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisURL       string // 为空表示不使用 Redis
	APIPort        string
	Server         ServerConfig
	Auth           AuthConfig
	MinIO          MinIOConfig
	Log            LogConfig
	ConfigFilePath string // 实际加载的配置文件路径
}

// yamlConfigInternal 内部包装，记录配置文件来源
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
