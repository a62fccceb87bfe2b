package config

type Config struct {
	BaseURL  string
	HttpPort int
	Db       struct {
		Dsn         string
		Automigrate bool
	}
	Jwt struct {
		SecretKey string
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Kyc struct {
		BaseURL string
	}
	Payment struct {
		BaseURL string
	}
	Accrual struct {
		RunIntervalMinutes int
		PoolSize           int
	}
	RedisServer  string
	KafkaServers string
}
