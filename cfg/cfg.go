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

	GithubApi struct {
		AccessToken       string
		ApiUrl            string
		RequestsPerSecond int
		ThrottleDelay     int
		RateLimitResetMin int
		RequestTimeout    int
	}

	Sync struct {
		SkipRankUpdate bool
		SkipRepoUpdate bool
		UpdateFromID   uint
		UpdateToID     uint
		NewRepoLimit   int
		NewRepoSince   int64
		Workers        int
	}

	Kafka struct {
		Enabled  bool
		Brokers  []string
		Producer KafkaProducer
	}

	KafkaProducer struct {
		TopicSyncEvent string
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	GithubApi GithubApi
	Sync      Sync
	Kafka     Kafka
}
