package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "github-syncer",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "github_syncer",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// Github
		Github: Github{
			ApiUrl:            "https://api.github.com",
			GraphqlUrl:        "https://api.github.com/graphql",
			AppID:             0,
			InstallationID:    0,
			PrivateKeyPath:    "",
			RequestsPerSecond: 10,
			ThrottleDelay:     200,
			RateLimitResetMin: 5,
			PerPage:           50,
		},

		// Kafka
		Kafka: Kafka{
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicFetch: "syncer.fetch",
			},
			Consumer: KafkaConsumer{
				GroupID: "github-syncer",
			},
		},

		// Sync
		Sync: Sync{
			ReconcileBatchSize:  200,
			CredentialCacheTTL:  300,
			RetryAttempts:       3,
			RetryBackoffSeconds: 5,
		},
	}, nil
}
