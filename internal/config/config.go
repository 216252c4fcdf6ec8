package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load 加载配置
//  1. 加载 .env.{env}（敏感信息）
//  2. 默认值 → configs/{env}.yaml
//  3. 环境变量覆盖
//  4. 校验
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}
	return build(env, yamlCfg)
}

// defaultYAMLConfig 代码默认值
func defaultYAMLConfig() YAMLConfig {
	return YAMLConfig{
		Server: ServerConfig{Port: "8080", ValidateRequests: true},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Path:    "data/library.db",
			Host:    "localhost",
			Port:    5432,
			User:    "library",
			Name:    "library",
			SSLMode: "disable",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		MinIO: MinIOConfig{Bucket: "library-reports"},
		Auth: AuthConfig{
			AccessTokenTTL:        "15m",
			RefreshTokenTTL:       "168h",
			EnforceElevatedWrites: true,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// loadYAMLConfig 加载 YAML 配置文件，文件不存在时使用默认值
func loadYAMLConfig(env Environment) (*yamlConfigInternal, error) {
	cfg := &yamlConfigInternal{YAMLConfig: defaultYAMLConfig()}

	path := findConfigFile(env)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg.YAMLConfig); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.loadedFrom = path
	return cfg, nil
}

// build 合并环境变量并生成最终配置
func build(env Environment, y *yamlConfigInternal) (*Config, error) {
	db := y.Database
	if d := os.Getenv("DB_DRIVER"); d != "" {
		db.Driver = d
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		db.Path = p
	}
	db.Password = os.Getenv("DB_PASSWORD")

	databaseURL := os.Getenv("DATABASE_URL")
	driver := detectDatabaseDriver(db.Driver, databaseURL)
	db.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(db, db.Password)
	}

	redisCfg := y.Redis
	redisCfg.Password = os.Getenv("REDIS_PASSWORD")
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" && redisCfg.Enabled {
		redisURL = buildRedisURL(redisCfg)
	}

	minio := y.MinIO
	minio.Endpoint = getEnv("MINIO_ENDPOINT", minio.Endpoint)
	minio.AccessKey = os.Getenv("MINIO_ROOT_USER")
	minio.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")

	authCfg := y.Auth
	authCfg.JWTSecret = os.Getenv("JWT_SECRET")
	authCfg.AdminUsername = getEnv("ADMIN_USERNAME", "admin")
	authCfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	authCfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if v := os.Getenv("ENFORCE_ELEVATED_WRITES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ENFORCE_ELEVATED_WRITES: %w", err)
		}
		authCfg.EnforceElevatedWrites = b
	}

	logCfg := y.Log
	logCfg.Level = getEnv("LOG_LEVEL", logCfg.Level)
	logCfg.Format = getEnv("LOG_FORMAT", logCfg.Format)
	logCfg.Output = getEnv("LOG_OUTPUT", logCfg.Output)

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: getEnv("MONGO_DB_NAME", db.Name),
		RedisURL:       redisURL,
		APIPort:        getEnv("API_PORT", y.Server.Port),
		Server:         y.Server,
		Auth:           authCfg,
		MinIO:          minio,
		Log:            logCfg,
		ConfigFilePath: y.loadedFrom,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Auth.AccessTokenTTL); err != nil {
		return fmt.Errorf("auth.access_token_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Auth.RefreshTokenTTL); err != nil {
		return fmt.Errorf("auth.refresh_token_ttl: %w", err)
	}
	return validatePolicies(c.Auth.Policies)
}

// validatePolicies 路由分组和策略名都必须已知
func validatePolicies(policies map[string]string) error {
	groups := make([]string, 0, len(policies))
	for g := range policies {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, group := range groups {
		if !contains(RouteGroups, group) {
			return fmt.Errorf("auth.policies: unknown route group %q (valid: %s)", group, strings.Join(RouteGroups, ", "))
		}
		name := policies[group]
		if !contains(PolicyNames, name) {
			return fmt.Errorf("auth.policies.%s: unknown policy %q (valid: %s)", group, name, strings.Join(PolicyNames, ", "))
		}
	}
	return nil
}

// AccessTokenTTL 解析后的访问令牌有效期
func (c *Config) AccessTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.AccessTokenTTL)
	return d
}

// RefreshTokenTTL 解析后的刷新令牌有效期
func (c *Config) RefreshTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.RefreshTokenTTL)
	return d
}

// WritePolicy 返回路由分组的写策略名
// 未显式配置时由 EnforceElevatedWrites 决定
func (c *Config) WritePolicy(group string) string {
	if name, ok := c.Auth.Policies[group]; ok {
		return name
	}
	if c.Auth.EnforceElevatedWrites {
		return PolicyReadOnlyOrElevated
	}
	return PolicyAuthenticated
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
