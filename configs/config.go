package config

import (
	"time"

	"github.com/spf13/viper"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Providers struct {
	OpenAIKey       string
	OpenAIModel     string
	PerplexityKey   string
	PerplexityModel string
	GoogleKey       string
	GoogleModel     string
	Timeout         time.Duration
}

type X struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBase      string
}

type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Config struct {
	AppEnv            string
	AppName           string
	HTTPAddr          string
	PostgresURI       string
	RedisURI          string
	RedisPassword     string
	RedisDB           int
	QueueDriver       string
	WorkerConcurrency int
	JobMaxRetry       int
	TierCache         string
	TierCacheTTL      time.Duration
	ThreadItemDelay   time.Duration
	ExpiryGrace       time.Duration
	FrontendURL       string
	SecretKey         string
	CookieName        string
	WebhookSecret     string
	Providers         Providers
	Google            Google
	X                 X
	R2                R2
}

func LoadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "threadcraft")
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("REDIS_URI", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("QUEUE_DRIVER", "asynq")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("JOB_MAX_RETRY", 5)
	v.SetDefault("TIER_CACHE", "memory")
	v.SetDefault("TIER_CACHE_TTL", 5*time.Minute)
	v.SetDefault("THREAD_ITEM_DELAY", 2*time.Second)
	v.SetDefault("EXPIRY_GRACE", 24*time.Hour)
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("COOKIE_NAME", "threadcraft_session")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("PERPLEXITY_MODEL", "sonar")
	v.SetDefault("GOOGLE_MODEL", "gemini-1.5-flash")
	v.SetDefault("PROVIDER_TIMEOUT", 30*time.Second)
	v.SetDefault("X_API_BASE", "https://api.x.com")
	v.SetDefault("X_REDIRECT_URI", "http://localhost:3000/auth/x/callback")
	v.SetDefault("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback")

	return &Config{
		AppEnv:            v.GetString("APP_ENV"),
		AppName:           v.GetString("APP_NAME"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		PostgresURI:       v.GetString("POSTGRES_URI"),
		RedisURI:          v.GetString("REDIS_URI"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		QueueDriver:       v.GetString("QUEUE_DRIVER"),
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		JobMaxRetry:       v.GetInt("JOB_MAX_RETRY"),
		TierCache:         v.GetString("TIER_CACHE"),
		TierCacheTTL:      v.GetDuration("TIER_CACHE_TTL"),
		ThreadItemDelay:   v.GetDuration("THREAD_ITEM_DELAY"),
		ExpiryGrace:       v.GetDuration("EXPIRY_GRACE"),
		FrontendURL:       v.GetString("FRONTEND_URL"),
		SecretKey:         v.GetString("SECRET_KEY"),
		CookieName:        v.GetString("COOKIE_NAME"),
		WebhookSecret:     v.GetString("PAYMENT_WEBHOOK_SECRET"),
		Providers: Providers{
			OpenAIKey:       v.GetString("OPENAI_API_KEY"),
			OpenAIModel:     v.GetString("OPENAI_MODEL"),
			PerplexityKey:   v.GetString("PERPLEXITY_API_KEY"),
			PerplexityModel: v.GetString("PERPLEXITY_MODEL"),
			GoogleKey:       v.GetString("GOOGLE_API_KEY"),
			GoogleModel:     v.GetString("GOOGLE_MODEL"),
			Timeout:         v.GetDuration("PROVIDER_TIMEOUT"),
		},
		Google: Google{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  v.GetString("GOOGLE_REDIRECT_URI"),
		},
		X: X{
			ClientID:     v.GetString("X_CLIENT_ID"),
			ClientSecret: v.GetString("X_CLIENT_SECRET"),
			RedirectURI:  v.GetString("X_REDIRECT_URI"),
			APIBase:      v.GetString("X_API_BASE"),
		},
		R2: R2{
			AccountID:  v.GetString("R2_ACCOUNT_ID"),
			AccessKey:  v.GetString("R2_ACCESS_KEY"),
			SecretKey:  v.GetString("R2_SECRET_KEY"),
			BucketName: v.GetString("R2_BUCKET_NAME"),
			PublicURL:  v.GetString("R2_PUBLIC_URL"),
		},
	}
}
