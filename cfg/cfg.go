package cfg

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	Github struct {
		ApiUrl            string
		GraphqlUrl        string
		AppID             int64
		InstallationID    int64
		PrivateKeyPath    string
		RequestsPerSecond int
		ThrottleDelay     int
		RateLimitResetMin int
		PerPage           int
	}

	Kafka struct {
		Brokers  []string
		Producer KafkaProducer
		Consumer KafkaConsumer
	}

	KafkaProducer struct {
		TopicFetch string
	}

	KafkaConsumer struct {
		GroupID string
	}

	Sync struct {
		ReconcileBatchSize  int
		CredentialCacheTTL  int
		RetryAttempts       int
		RetryBackoffSeconds int
	}
)

type Config struct {
	App    App
	Mysql  Mysql
	Github Github
	Kafka  Kafka
	Sync   Sync
}
