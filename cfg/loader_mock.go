package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "github-tracker",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "github_tracker",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:       "",
			ApiUrl:            "https://api.github.com",
			RequestsPerSecond: 5,
			ThrottleDelay:     200,
			RateLimitResetMin: 5,
			RequestTimeout:    30,
		},

		// Sync
		Sync: Sync{
			SkipRankUpdate: false,
			SkipRepoUpdate: false,
			UpdateFromID:   0,
			UpdateToID:     0,
			NewRepoLimit:   0,
			NewRepoSince:   815368990,
			Workers:        1,
		},

		// Kafka
		Kafka: Kafka{
			Enabled: false,
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicSyncEvent: "github-tracker.sync-events",
			},
		},
	}, nil
}
